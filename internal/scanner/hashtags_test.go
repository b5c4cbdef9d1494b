package scanner

import (
	"reflect"
	"testing"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Hello #World #world! #a.b", []string{"a", "world"}},
		{"no tags here", nil},
		{"", nil},
		{"   \n\t ", nil},
		{"#one #two #one", []string{"one", "two"}},
		{"#Trip2024, then #beach; finally #Sunset:", []string{"beach", "sunset", "trip2024"}},
		{"##double", []string{"double"}},
		{"trailing #", nil},
		{"#CamelCase", []string{"camelcase"}},
	}

	for _, tt := range tests {
		got := ExtractHashtags(tt.text)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractHashtags(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
