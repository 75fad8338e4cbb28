package xml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scheduleResponseXML = `<?xml version="1.0" encoding="utf-8" ?>
<C:schedule-response xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <C:response>
    <C:recipient>
      <D:href>mailto:boss@example.com</D:href>
    </C:recipient>
    <C:request-status>2.0;Success</C:request-status>
  </C:response>
  <C:response>
    <C:recipient>
      <D:href>mailto:nobody@example.org</D:href>
    </C:recipient>
    <C:request-status>3.7;Invalid calendar user</C:request-status>
    <D:responsedescription>Unknown recipient</D:responsedescription>
  </C:response>
</C:schedule-response>`

func TestParseScheduleResponse(t *testing.T) {
	resp, err := ParseScheduleResponse([]byte(scheduleResponseXML))
	require.NoError(t, err)
	require.Len(t, resp.Recipients, 2)

	assert.Equal(t, "mailto:boss@example.com", resp.Recipients[0].Recipient)
	assert.True(t, resp.Recipients[0].Delivered())

	failed := resp.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "mailto:nobody@example.org", failed[0].Recipient)
	assert.Equal(t, "3.7;Invalid calendar user", failed[0].RequestStatus)
	assert.Equal(t, "Unknown recipient", failed[0].Description)
}

func TestParseScheduleResponseWrongRoot(t *testing.T) {
	_, err := ParseScheduleResponse([]byte(`<D:multistatus xmlns:D="DAV:"/>`))
	assert.Error(t, err)

	_, err = ParseScheduleResponse([]byte(`not xml`))
	assert.Error(t, err)

	_, err = ParseScheduleResponse([]byte(`<X:schedule-response xmlns:X="http://example.com/ns"/>`))
	assert.Error(t, err)
}
