package kord

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "hello", []string{"hello"}},
		{"spaces", "a b  c", []string{"a", "b", "c"}},
		{"quoted group", `say "hello world" now`, []string{"say", "hello world", "now"}},
		{"escaped quote", `say \"hi\"`, []string{"say", `"hi"`}},
		{"escaped space", `a\ b c`, []string{"a b", "c"}},
		{"unterminated quote", `say "hello wor`, []string{"say", "hello wor"}},
		{"empty quotes collapse", `a "" b`, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	schema := Flags{
		"verbose": {Type: FlagBool, Alias: "v"},
		"output":  {Type: FlagString, Alias: "o"},
	}

	tests := []struct {
		name           string
		tokens         []string
		wantPositional []string
		wantValues     map[string]interface{}
		wantErr        string
	}{
		{
			name:           "no flags",
			tokens:         []string{"a", "b"},
			wantPositional: []string{"a", "b"},
			wantValues:     map[string]interface{}{},
		},
		{
			name:           "bool switch",
			tokens:         []string{"--verbose", "a"},
			wantPositional: []string{"a"},
			wantValues:     map[string]interface{}{"verbose": true},
		},
		{
			name:           "string with value token",
			tokens:         []string{"--output", "out.txt"},
			wantPositional: nil,
			wantValues:     map[string]interface{}{"output": "out.txt"},
		},
		{
			name:           "string with inline value",
			tokens:         []string{"--output=out.txt", "a"},
			wantPositional: []string{"a"},
			wantValues:     map[string]interface{}{"output": "out.txt"},
		},
		{
			name:           "alias resolves to long name",
			tokens:         []string{"-o", "out.txt", "-v"},
			wantPositional: nil,
			wantValues:     map[string]interface{}{"output": "out.txt", "verbose": true},
		},
		{
			name:    "unknown flag",
			tokens:  []string{"--bogus"},
			wantErr: "unknown flag --bogus",
		},
		{
			name:    "missing value",
			tokens:  []string{"--output"},
			wantErr: "flag --output requires a value",
		},
		{
			name:           "bare dashes stay positional",
			tokens:         []string{"-", "--"},
			wantPositional: []string{"-", "--"},
			wantValues:     map[string]interface{}{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positional, values, err := parseFlags(tt.tokens, schema)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseFlags() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags() error = %v", err)
			}
			if !reflect.DeepEqual(positional, tt.wantPositional) {
				t.Errorf("positional = %#v, want %#v", positional, tt.wantPositional)
			}
			if !reflect.DeepEqual(values, tt.wantValues) {
				t.Errorf("values = %#v, want %#v", values, tt.wantValues)
			}
		})
	}
}

func TestArgvAccessors(t *testing.T) {
	argv := &Argv{
		Params: map[string]string{"name": "alice"},
		Flags:  map[string]interface{}{"verbose": true, "output": "out.txt"},
	}
	if got := argv.Param("name"); got != "alice" {
		t.Errorf("Param(name) = %q", got)
	}
	if got := argv.Param("missing"); got != "" {
		t.Errorf("Param(missing) = %q, want empty", got)
	}
	if !argv.Bool("verbose") {
		t.Error("Bool(verbose) = false")
	}
	if argv.Bool("output") {
		t.Error("Bool(output) = true for a string flag")
	}
	if got := argv.Flag("output"); got != "out.txt" {
		t.Errorf("Flag(output) = %q", got)
	}
	if got := argv.Flag("verbose"); got != "" {
		t.Errorf("Flag(verbose) = %q, want empty for a bool flag", got)
	}
}
