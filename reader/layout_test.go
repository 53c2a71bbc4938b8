package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	tests := map[string]struct {
		format string
		want   string
		value  string
	}{
		"iso date":       {format: "%Y-%m-%d", want: "2006-01-02", value: "2024-03-09"},
		"day first":      {format: "%d/%m/%Y", want: "02/01/2006", value: "09/03/2024"},
		"date and time":  {format: "%Y-%m-%d %H:%M:%S", want: "2006-01-02 15:04:05", value: "2024-03-09 14:30:00"},
		"month name":     {format: "%d %b %Y", want: "02 Jan 2006", value: "09 Mar 2024"},
		"literal":        {format: "%Y%%%m", want: "2006%01", value: "2024%03"},
		"go layout kept": {format: "2006-01-02", want: "2006-01-02", value: "2024-03-09"},
		"empty":          {format: "", want: ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Layout(test.format)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)

			if test.value != "" {
				parsed, err := time.Parse(got, test.value)
				require.NoError(t, err)
				assert.Equal(t, 2024, parsed.Year())
				assert.Equal(t, time.March, parsed.Month())
			}
		})
	}
}

func TestLayout_Errors(t *testing.T) {
	for _, format := range []string{"%Y-%m-%", "%Y-%Q"} {
		_, err := Layout(format)
		assert.Error(t, err, format)
	}
}
