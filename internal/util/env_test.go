package util

import "testing"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("RG_STRING", "value")
	t.Setenv("RG_EMPTY", "")
	t.Setenv("RG_NUMBER", "12.7")
	t.Setenv("RG_BAD_NUMBER", "twelve")
	t.Setenv("RG_TRUE", "true")
	t.Setenv("RG_YES", "yes")

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "GetEnv set", got: GetEnv("RG_STRING"), want: "value"},
		{name: "GetEnv unset", got: GetEnv("RG_UNSET"), want: ""},
		{name: "GetEnvString set", got: GetEnvString("RG_STRING", "d"), want: "value"},
		{name: "GetEnvString empty", got: GetEnvString("RG_EMPTY", "d"), want: "d"},
		{name: "GetEnvNumeric", got: GetEnvNumeric("RG_NUMBER", 1), want: 12.7},
		{name: "GetEnvNumeric invalid", got: GetEnvNumeric("RG_BAD_NUMBER", 3), want: 3.0},
		{name: "GetEnvInt", got: GetEnvInt("RG_NUMBER", 1), want: 12},
		{name: "GetEnvInt unset", got: GetEnvInt("RG_UNSET", 5), want: 5},
		{name: "GetEnvBool true", got: GetEnvBool("RG_TRUE", false), want: true},
		{name: "GetEnvBool invalid", got: GetEnvBool("RG_YES", false), want: false},
		{name: "GetEnvBool unset", got: GetEnvBool("RG_UNSET", true), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
