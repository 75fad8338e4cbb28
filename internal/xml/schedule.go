package xml

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// TagScheduleResponse is the root of a scheduling outbox POST response
// (RFC 6638 section 10.2)
const TagScheduleResponse = "schedule-response"

// ScheduleResponse holds the per-recipient delivery status of a scheduling
// request
type ScheduleResponse struct {
	Recipients []RecipientStatus
}

// RecipientStatus is one C:response element of a schedule-response
type RecipientStatus struct {
	Recipient     string
	RequestStatus string
	Description   string
}

// Delivered reports whether the request status is a 2.x success code
func (r RecipientStatus) Delivered() bool {
	return strings.HasPrefix(strings.TrimSpace(r.RequestStatus), "2.")
}

// Parse reads a schedule-response document
func (s *ScheduleResponse) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return fmt.Errorf("empty document")
	}
	root := doc.Root()
	if root.Tag != TagScheduleResponse {
		return fmt.Errorf("invalid root tag: %s", root.Tag)
	}
	if ns := root.NamespaceURI(); ns != "" && ns != CalDAV {
		return fmt.Errorf("invalid root namespace: %s", ns)
	}

	s.Recipients = nil
	for _, respElem := range root.SelectElements("response") {
		status := RecipientStatus{}
		if recipElem := respElem.SelectElement("recipient"); recipElem != nil {
			if href := recipElem.SelectElement("href"); href != nil {
				status.Recipient = strings.TrimSpace(href.Text())
			} else {
				status.Recipient = strings.TrimSpace(recipElem.Text())
			}
		}
		if rs := respElem.SelectElement("request-status"); rs != nil {
			status.RequestStatus = strings.TrimSpace(rs.Text())
		}
		if desc := respElem.SelectElement("responsedescription"); desc != nil {
			status.Description = strings.TrimSpace(desc.Text())
		}
		s.Recipients = append(s.Recipients, status)
	}
	return nil
}

// ParseScheduleResponse parses a schedule-response body
func ParseScheduleResponse(data []byte) (*ScheduleResponse, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse schedule-response: %w", err)
	}
	resp := &ScheduleResponse{}
	if err := resp.Parse(doc); err != nil {
		return nil, err
	}
	return resp, nil
}

// Failed returns the recipients whose delivery did not succeed
func (s *ScheduleResponse) Failed() []RecipientStatus {
	var failed []RecipientStatus
	for _, r := range s.Recipients {
		if !r.Delivered() {
			failed = append(failed, r)
		}
	}
	return failed
}
