package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

func TestFormatDateIsLocaleAware(t *testing.T) {
	ts := time.Date(2025, 3, 7, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "3/7/2025", FormatDate(ts, language.AmericanEnglish))
	assert.Equal(t, "07/03/2025", FormatDate(ts, language.BritishEnglish))
	assert.Equal(t, "7.3.2025", FormatDate(ts, language.German))
	assert.Equal(t, "2025-03-07", FormatDate(ts, language.Korean))
	assert.Equal(t, "", FormatDate(time.Time{}, language.AmericanEnglish))
}

func TestMatchLocale(t *testing.T) {
	assert.Equal(t, language.German, MatchLocale("de-DE,de;q=0.9,en;q=0.5", language.AmericanEnglish))
	assert.Equal(t, language.AmericanEnglish, MatchLocale("", language.AmericanEnglish))
	assert.Equal(t, language.BritishEnglish, MatchLocale("en-GB", language.AmericanEnglish))
	assert.Equal(t, language.AmericanEnglish, MatchLocale("zz", language.AmericanEnglish))
}

func TestStatusColorMapping(t *testing.T) {
	assert.Equal(t, "badge-yellow", StatusColor(api.StatusPending))
	assert.Equal(t, "badge-blue", StatusColor(api.StatusConfirmed))
	assert.Equal(t, "badge-purple", StatusColor(api.StatusInProgress))
	assert.Equal(t, "badge-green", StatusColor(api.StatusDelivered))
	assert.Equal(t, "badge-red", StatusColor(api.StatusCancelled))
	assert.Equal(t, "badge-gray", StatusColor("archived"))
}

func TestLabelsAndIDs(t *testing.T) {
	assert.Equal(t, "in progress", StatusLabel(api.StatusInProgress))
	assert.Equal(t, "badge-purple", ServiceTypeColor(api.ServiceTypeConsulting))
	assert.Equal(t, "89abcdef", ShortID("01234567-89abcdef"))
	assert.Equal(t, "abc", ShortID("abc"))
}

func TestFormatMoneyGroupsDigits(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatMoney(1234.5, language.AmericanEnglish))
	assert.Equal(t, "$12.50", FormatMoney(12.5, language.AmericanEnglish))
	assert.Equal(t, "12,000", FormatCount(12000, language.AmericanEnglish))
}
