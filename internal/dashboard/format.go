package dashboard

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

var supportedLocales = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.Portuguese,
	language.Indonesian,
	language.Japanese,
	language.Chinese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var dateLayouts = map[language.Tag]string{
	language.AmericanEnglish: "1/2/2006",
	language.BritishEnglish:  "02/01/2006",
	language.German:          "2.1.2006",
	language.French:          "02/01/2006",
	language.Spanish:         "2/1/2006",
	language.Italian:         "2/1/2006",
	language.Portuguese:      "02/01/2006",
	language.Indonesian:      "2/1/2006",
	language.Japanese:        "2006/1/2",
	language.Chinese:         "2006/1/2",
}

const isoDateLayout = "2006-01-02"

// MatchLocale picks the supported locale closest to an Accept-Language header.
func MatchLocale(acceptLanguage string, fallback language.Tag) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return supportedLocales[idx]
}

// FormatDate renders the calendar date of t in the conventions of tag. Zero times
// render as an empty string.
func FormatDate(t time.Time, tag language.Tag) string {
	if t.IsZero() {
		return ""
	}
	layout, ok := dateLayouts[tag]
	if !ok {
		layout = isoDateLayout
	}
	return t.Format(layout)
}

// FormatMoney renders an amount with two decimals and locale grouping.
func FormatMoney(amount float64, tag language.Tag) string {
	return "$" + message.NewPrinter(tag).Sprintf("%.2f", amount)
}

// FormatCount renders an integer with locale grouping.
func FormatCount(n int, tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf("%d", n)
}

// StatusColor maps a booking status to its badge classes.
func StatusColor(status api.BookingStatus) string {
	switch status {
	case api.StatusPending:
		return "badge-yellow"
	case api.StatusConfirmed:
		return "badge-blue"
	case api.StatusInProgress:
		return "badge-purple"
	case api.StatusDelivered:
		return "badge-green"
	case api.StatusCancelled:
		return "badge-red"
	default:
		return "badge-gray"
	}
}

// StatusLabel is the display form of a status.
func StatusLabel(status api.BookingStatus) string {
	return strings.Replace(string(status), "_", " ", 1)
}

// ServiceTypeColor maps a service type to its badge classes.
func ServiceTypeColor(kind api.ServiceType) string {
	switch kind {
	case api.ServiceTypeLogistics:
		return "badge-blue"
	case api.ServiceTypeTransportation:
		return "badge-green"
	default:
		return "badge-purple"
	}
}

// ShortID keeps the last eight characters of an identifier.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
