package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_AcceptedLayoutsAgree(t *testing.T) {
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"15-03-2024", "2024/03/15", "2024-03-15", " 2024-3-15 "} {
		got, ok := Date(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}
}

func TestDate_Unrepresentable(t *testing.T) {
	for _, in := range []string{"2024-13-45", "", "   ", "15/03/2024", "March 15 2024", "31-02-2024"} {
		_, ok := Date(in)
		assert.False(t, ok, in)
	}
}

func TestDate_DayMonthYearWinsWhenAmbiguous(t *testing.T) {
	got, ok := Date("01-02-2024")
	require.True(t, ok)
	assert.Equal(t, time.February, got.Month())
	assert.Equal(t, 1, got.Day())
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"98765 43210", "+91-9876543210", true},
		{"(987) 654-3210", "+91-9876543210", true},
		{"9876543210", "+91-9876543210", true},
		{"12345", "", false},
		{"", "", false},
		{"+91 98765 43210", "", false},
	}

	for _, tt := range tests {
		got, ok := Phone(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "Tools", Category("tools"))
	assert.Equal(t, "Tools", Category("  TOOLS "))
	assert.Equal(t, "Home & Kitchen", Category("home & KITCHEN"))
	assert.Equal(t, "E-Books", Category("e-books"))
	assert.Equal(t, "", Category("  "))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", Email(" A@X.com "))
}
