package cmd

import "testing"

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"127.0.0.1:3400", false},
		{"localhost:8080", false},
		{":8080", false},
		{"0.0.0.0:0", false},
		{"127.0.0.1", true},
		{"127.0.0.1:", true},
		{"127.0.0.1:notaport", true},
		{"127.0.0.1:70000", true},
		{"bad host:8080", true},
	}

	for _, tt := range tests {
		err := validateAddr(tt.addr)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
		}
	}
}

func TestParseIngestArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    ingestArgs
		wantErr bool
	}{
		{
			name: "defaults from file name",
			args: []string{"docs/return-policy.md"},
			want: ingestArgs{
				filePath:   "docs/return-policy.md",
				documentID: "return-policy",
				title:      "return-policy.md",
			},
		},
		{
			name: "explicit id and title",
			args: []string{"docs/return-policy.md", "--id", "returns", "--title", "Return Policy"},
			want: ingestArgs{
				filePath:   "docs/return-policy.md",
				documentID: "returns",
				title:      "Return Policy",
			},
		},
		{
			name:    "missing file",
			args:    []string{},
			wantErr: true,
		},
		{
			name:    "flags without file",
			args:    []string{"--id", "returns"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIngestArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseIngestArgs: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseIngestArgs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
