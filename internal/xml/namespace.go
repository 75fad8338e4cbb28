package xml

// Namespace definitions for CalDAV and WebDAV
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
)
