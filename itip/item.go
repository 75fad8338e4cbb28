package itip

import (
	"strings"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

const paramRole = "ROLE"

// PartStat is an attendee participation status (RFC 5545 section 3.2.12).
type PartStat string

const (
	PartStatNeedsAction PartStat = "NEEDS-ACTION"
	PartStatAccepted    PartStat = "ACCEPTED"
	PartStatDeclined    PartStat = "DECLINED"
	PartStatTentative   PartStat = "TENTATIVE"
	PartStatDelegated   PartStat = "DELEGATED"
)

// Attendee is a calendar user taking part in an item. The organizer is
// represented with the same type.
type Attendee struct {
	// ID is the scheme-qualified calendar address, e.g. "mailto:alice@example.com"
	ID         string
	Status     PartStat
	CommonName string
	Role       string

	params ical.Params
}

func attendeeFromProp(p ical.Prop) Attendee {
	status := PartStat(strings.ToUpper(p.Params.Get(ical.ParamParticipationStatus)))
	if status == "" {
		status = PartStatNeedsAction
	}
	return Attendee{
		ID:         p.Value,
		Status:     status,
		CommonName: p.Params.Get(ical.ParamCommonName),
		Role:       p.Params.Get(paramRole),
		params:     cloneParams(p.Params),
	}
}

// Matches reports whether id refers to this attendee. Calendar addresses are
// compared case-insensitively.
func (a Attendee) Matches(id string) bool {
	return id != "" && strings.EqualFold(a.ID, id)
}

func (a Attendee) toProp(name string) ical.Prop {
	p := ical.Prop{Name: name, Value: a.ID, Params: cloneParams(a.params)}
	if p.Params == nil {
		p.Params = make(ical.Params)
	}
	if name == ical.PropAttendee && a.Status != "" {
		p.Params.Set(ical.ParamParticipationStatus, string(a.Status))
	}
	if a.CommonName != "" {
		p.Params.Set(ical.ParamCommonName, a.CommonName)
	}
	if a.Role != "" {
		p.Params.Set(paramRole, a.Role)
	}
	return p
}

// Item is an immutable calendar item (VEVENT or VTODO) together with the
// bookkeeping a store attaches to it. Use ItemBuilder to derive a modified
// copy.
type Item struct {
	comp       *ical.Component
	generation int
	calendar   mo.Option[Store]
}

// NewItem wraps a copy of comp. The component type is not checked here;
// see Item.Type.
func NewItem(comp *ical.Component) *Item {
	return &Item{
		comp:     cloneComponent(comp),
		calendar: mo.None[Store](),
	}
}

// ID returns the item's UID.
func (i *Item) ID() string {
	uid, _ := i.comp.Props.Text(ical.PropUID)
	return uid
}

// Type returns the item type derived from the component name.
func (i *Item) Type() ItemType {
	t, _ := ParseItemType(i.comp.Name)
	return t
}

// Generation returns the store's optimistic concurrency token.
func (i *Item) Generation() int {
	return i.generation
}

// Calendar returns the store owning this item, if any.
func (i *Item) Calendar() mo.Option[Store] {
	return i.calendar
}

// Summary returns the SUMMARY property, or an empty string.
func (i *Item) Summary() string {
	s, _ := i.comp.Props.Text(ical.PropSummary)
	return s
}

// Organizer returns the ORGANIZER of the item.
func (i *Item) Organizer() mo.Option[Attendee] {
	p := i.comp.Props.Get(ical.PropOrganizer)
	if p == nil {
		return mo.None[Attendee]()
	}
	return mo.Some(attendeeFromProp(*p))
}

// Attendees returns the ATTENDEE list in document order.
func (i *Item) Attendees() []Attendee {
	props := i.comp.Props[ical.PropAttendee]
	out := make([]Attendee, 0, len(props))
	for _, p := range props {
		out = append(out, attendeeFromProp(p))
	}
	return out
}

// AttendeeByID looks up an attendee by calendar address.
func (i *Item) AttendeeByID(id string) mo.Option[Attendee] {
	for _, a := range i.Attendees() {
		if a.Matches(id) {
			return mo.Some(a)
		}
	}
	return mo.None[Attendee]()
}

// Component returns a copy of the underlying iCalendar component.
func (i *Item) Component() *ical.Component {
	return cloneComponent(i.comp)
}

// ItemBuilder derives a new Item from an existing one.
type ItemBuilder struct {
	comp       *ical.Component
	generation int
	calendar   mo.Option[Store]
	attendees  []Attendee
	replace    bool
}

// NewItemBuilder starts from base. Nothing done through the builder is
// visible in base.
func NewItemBuilder(base *Item) *ItemBuilder {
	return &ItemBuilder{
		comp:       base.comp,
		generation: base.generation,
		calendar:   base.calendar,
	}
}

func (b *ItemBuilder) Generation(g int) *ItemBuilder {
	b.generation = g
	return b
}

func (b *ItemBuilder) Calendar(c mo.Option[Store]) *ItemBuilder {
	b.calendar = c
	return b
}

// Attendees replaces the attendee list. The organizer is kept.
func (b *ItemBuilder) Attendees(attendees ...Attendee) *ItemBuilder {
	b.attendees = append([]Attendee(nil), attendees...)
	b.replace = true
	return b
}

func (b *ItemBuilder) Build() *Item {
	comp := cloneComponent(b.comp)
	if b.replace {
		delete(comp.Props, ical.PropAttendee)
		for _, a := range b.attendees {
			p := a.toProp(ical.PropAttendee)
			comp.Props.Add(&p)
		}
	}
	return &Item{comp: comp, generation: b.generation, calendar: b.calendar}
}

func cloneComponent(c *ical.Component) *ical.Component {
	if c == nil {
		return ical.NewComponent("")
	}
	out := &ical.Component{Name: c.Name, Props: make(ical.Props, len(c.Props))}
	for name, props := range c.Props {
		cp := make([]ical.Prop, len(props))
		for i, p := range props {
			cp[i] = ical.Prop{Name: p.Name, Value: p.Value, Params: cloneParams(p.Params)}
		}
		out.Props[name] = cp
	}
	for _, child := range c.Children {
		out.Children = append(out.Children, cloneComponent(child))
	}
	return out
}

func cloneParams(params ical.Params) ical.Params {
	if params == nil {
		return nil
	}
	out := make(ical.Params, len(params))
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	return out
}
