package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Payload
	}{
		{
			name: "json envelope routes to token path",
			raw:  `{"token":"abc.def.ghi"}`,
			want: Payload{Token: "abc.def.ghi"},
		},
		{
			name: "bare jwt routes to token path",
			raw:  "header.payload.signature",
			want: Payload{Token: "header.payload.signature"},
		},
		{
			name: "plain code stays a code",
			raw:  "TKT-7FQ2-M9XR",
			want: Payload{Code: "TKT-7FQ2-M9XR"},
		},
		{
			name: "json without token field is a code",
			raw:  `{"foo":"bar"}`,
			want: Payload{Code: `{"foo":"bar"}`},
		},
		{
			name: "malformed json is a code",
			raw:  `{"token":`,
			want: Payload{Code: `{"token":`},
		},
		{
			name: "surrounding whitespace is trimmed",
			raw:  "  TKT-7FQ2-M9XR\n",
			want: Payload{Code: "TKT-7FQ2-M9XR"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePayload(tc.raw))
		})
	}
}
