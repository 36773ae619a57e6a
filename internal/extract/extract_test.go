package extract

import (
	"errors"
	"testing"
)

func TestObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{
			name: "bare object",
			in:   `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "wrapped in prose",
			in:   "Sure! Here you go:\n{\"question\":\"Why?\"}\nHope that helps.",
			want: `{"question":"Why?"}`,
		},
		{
			name: "code fence",
			in:   "```json\n{\"a\":{\"b\":[1,2]}}\n```",
			want: `{"a":{"b":[1,2]}}`,
		},
		{
			name:    "no braces",
			in:      "I cannot help with that.",
			wantErr: ErrNoStructureFound,
		},
		{
			name:    "closing before opening",
			in:      "} nothing {",
			wantErr: ErrNoStructureFound,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: ErrNoStructureFound,
		},
		{
			name:    "truncated",
			in:      `{"question": "What do you think about}`,
			wantErr: ErrMalformedStructure,
		},
		{
			name:    "two objects",
			in:      `{"a":1} and {"b":2}`,
			wantErr: ErrMalformedStructure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Object(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	if err := Decode(`noise {"question":"Q1","options":["x","y"]} noise`, &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Question != "Q1" || len(v.Options) != 2 {
		t.Fatalf("unexpected decode result: %+v", v)
	}
}

func TestDecode_TypeMismatchIsMalformed(t *testing.T) {
	var v struct {
		Options []string `json:"options"`
	}
	err := Decode(`{"options":"not a list"}`, &v)
	if !errors.Is(err, ErrMalformedStructure) {
		t.Fatalf("expected ErrMalformedStructure, got %v", err)
	}
}
