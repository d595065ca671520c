package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0min"},
		{59 * time.Second, "0min"},
		{125 * time.Second, "2min"},
		{59*time.Minute + 59*time.Second, "59min"},
		{time.Hour, "1h0min"},
		{3661 * time.Second, "1h1min"},
		{26*time.Hour + 5*time.Minute, "26h5min"},
		{-5 * time.Minute, "0min"},
	}
	for _, tc := range cases {
		t.Run(tc.in.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDuration(tc.in))
		})
	}
}

func TestRegistrationCode(t *testing.T) {
	at := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, `^PRF-2031-[A-Z0-9]{4}$`, RegistrationCode(at))
	}
}
