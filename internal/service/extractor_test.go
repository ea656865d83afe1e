package service

import (
	"testing"
)

func TestPlainTextExtractor(t *testing.T) {
	e := NewPlainTextExtractor()

	testCases := []struct {
		name        string
		raw         []byte
		contentType string
		filename    string
		wantErr     bool
		wantWords   int
	}{
		{
			name:        "plain text",
			raw:         []byte("hello world"),
			contentType: "text/plain",
			filename:    "a.txt",
			wantWords:   2,
		},
		{
			name:        "markdown by extension",
			raw:         []byte("# title\nbody"),
			contentType: "",
			filename:    "readme.md",
			wantWords:   3,
		},
		{
			name:        "json content type",
			raw:         []byte(`{"k": "v"}`),
			contentType: "application/json",
			filename:    "data.bin",
			wantWords:   2,
		},
		{
			name:        "empty file",
			raw:         nil,
			contentType: "text/plain",
			filename:    "a.txt",
			wantErr:     true,
		},
		{
			name:        "unsupported type",
			raw:         []byte{0x25, 0x50, 0x44, 0x46},
			contentType: "application/pdf",
			filename:    "a.pdf",
			wantErr:     true,
		},
		{
			name:        "invalid utf8",
			raw:         []byte{0xff, 0xfe, 0x00},
			contentType: "text/plain",
			filename:    "a.txt",
			wantErr:     true,
		},
		{
			name:        "whitespace only",
			raw:         []byte("   \n\t "),
			contentType: "text/plain",
			filename:    "a.txt",
			wantErr:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := e.Extract(tc.raw, tc.contentType, tc.filename)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if result.WordCount != tc.wantWords {
				t.Errorf("WordCount = %d, want %d", result.WordCount, tc.wantWords)
			}
		})
	}
}
