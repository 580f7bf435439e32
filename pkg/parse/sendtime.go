package parse

import (
	"regexp"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// Header phrase carrying the send time, e.g. "John sent a photo at 10:15 pm on 3 June 2021".
// Month names are matched as letters so localized exports reach the fallback parser.
var sendTimePattern = regexp.MustCompile(`at\s(?P<time>[\d:]+\s(?i:am|pm))\son\s(?P<date>\d{1,2}\s[\p{L}\w]+\.?\s\d{4})`)

const sendTimeLayout = "2 January 2006 3:04 pm"

var fallbackDateConfig = &dps.Configuration{
	CurrentTime: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
}

// ParseSendTime extracts the send time from a message header.
// The result is the wall-clock time of the export, expressed in UTC.
func ParseSendTime(header string) (time.Time, error) {
	m := sendTimePattern.FindStringSubmatch(header)
	if m == nil {
		return time.Time{}, utils.WrapErrorf(utils.ErrParsing, "no send timestamp in message header '%s'", strings.TrimSpace(header))
	}
	clock := strings.ToLower(m[sendTimePattern.SubexpIndex("time")])
	date := m[sendTimePattern.SubexpIndex("date")]

	if t, err := time.Parse(sendTimeLayout, date+" "+clock); err == nil {
		return t, nil
	}

	// Localized month names or clock formats the fixed layout can't read
	parsed, err := dps.Parse(fallbackDateConfig, date+" "+clock)
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, utils.WrapErrorf(utils.ErrParsing, "unparsable timestamp '%s %s'", date, clock)
	}
	t := parsed.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}
