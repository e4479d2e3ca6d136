package table

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  *Table
	}{
		{
			name:  "simple",
			input: []byte("Med Name,Qty\nAspirin,100\n"),
			want:  &Table{Header: []string{"Med Name", "Qty"}, Rows: [][]string{{"Aspirin", "100"}}},
		},
		{
			name:  "bom and crlf",
			input: []byte("\xEF\xBB\xBFMed Name,Qty\r\nAspirin,100\r\n"),
			want:  &Table{Header: []string{"Med Name", "Qty"}, Rows: [][]string{{"Aspirin", "100"}}},
		},
		{
			name:  "windows-1252",
			input: []byte("Name,Note\nCaf\xe9,\x93quoted\x94\n"),
			want:  &Table{Header: []string{"Name", "Note"}, Rows: [][]string{{"Café", "“quoted”"}}},
		},
		{
			name:  "header cleanup",
			input: []byte(" Qty , =\"NDC\" ,\nx,y,z\n"),
			want:  &Table{Header: []string{"Qty", "NDC", "column_3"}, Rows: [][]string{{"x", "y", "z"}}},
		},
		{
			name:  "short rows padded and blank lines skipped",
			input: []byte("a,b,c\n1\n,,\n\n4,5,6\n"),
			want:  &Table{Header: []string{"a", "b", "c"}, Rows: [][]string{{"1", "", ""}, {"4", "5", "6"}}},
		},
		{
			name:  "header only",
			input: []byte("a,b\n"),
			want:  &Table{Header: []string{"a", "b"}},
		},
		{
			name:  "quoted commas",
			input: []byte("name,notes\n\"Smith, J\",\"line1\nline2\"\n"),
			want:  &Table{Header: []string{"name", "notes"}, Rows: [][]string{{"Smith, J", "line1\nline2"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrEmptyFile},
		{"only newlines", "\n\n", ErrEmptyFile},
		{"blank header", " , \n1,2\n", ErrEmptyFile},
		{"duplicate header", "Qty,Name,Qty\n1,a,2\n", ErrDuplicateHeader},
		{"duplicate after trim", "Qty, Qty\n1,2\n", ErrDuplicateHeader},
		{"too many fields", "a,b\n1,2,3\n", ErrInvalidCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Med Name ", "Med Name"},
		{`="00123"`, "00123"},
		{"=Total", "Total"},
		{`'Qty'`, "Qty"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanHeader(tt.in); got != tt.want {
			t.Errorf("CleanHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRename(t *testing.T) {
	src := &Table{
		Header: []string{"Med Name", "Mystery", "Qty"},
		Rows:   [][]string{{"Aspirin", "?", "100"}, {"Tylenol", "!", "50"}},
	}
	mapping := map[string]string{"Qty": "total_quantity", "Med Name": "medication_name"}

	got := src.Rename(mapping, false)
	want := &Table{
		Header: []string{"medication_name", "total_quantity"},
		Rows:   [][]string{{"Aspirin", "100"}, {"Tylenol", "50"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rename(drop) mismatch (-want +got):\n%s", diff)
	}

	kept := src.Rename(mapping, true)
	if diff := cmp.Diff([]string{"medication_name", "Mystery", "total_quantity"}, kept.Header); diff != "" {
		t.Errorf("Rename(keep) header mismatch (-want +got):\n%s", diff)
	}

	// Source is untouched.
	if src.Header[0] != "Med Name" || src.Rows[0][2] != "100" {
		t.Errorf("Rename modified its receiver: %+v", src)
	}
}

func TestRename_KeptNameCollision(t *testing.T) {
	src := &Table{
		Header: []string{"expiry_date", "Exp Date", "expiry_date_unmapped"},
		Rows:   [][]string{{"a", "b", "c"}},
	}
	got := src.Rename(map[string]string{"Exp Date": "expiry_date"}, true)
	want := &Table{
		Header: []string{"expiry_date_unmapped_2", "expiry_date", "expiry_date_unmapped"},
		Rows:   [][]string{{"a", "b", "c"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rename mismatch (-want +got):\n%s", diff)
	}
}

func TestRename_EmptyMapping(t *testing.T) {
	src := &Table{Header: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}
	got := src.Rename(nil, false)
	if len(got.Header) != 0 {
		t.Errorf("Header = %v, want empty", got.Header)
	}
	if len(got.Rows) != 2 {
		t.Errorf("row count = %d, want 2", len(got.Rows))
	}
}

func TestEncode(t *testing.T) {
	tbl := &Table{
		Header: []string{"name", "notes"},
		Rows:   [][]string{{"Smith, J", `says "hi"`}, {"plain", ""}},
	}
	got, err := tbl.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := "name,notes\n\"Smith, J\",\"says \"\"hi\"\"\"\nplain,\n"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}

	back, err := Parse([]byte(got))
	if err != nil {
		t.Fatalf("Parse(Encode()) error = %v", err)
	}
	if diff := cmp.Diff(tbl, back); diff != "" {
		t.Errorf("Parse(Encode()) mismatch (-want +got):\n%s", diff)
	}
}

func TestRecords(t *testing.T) {
	tbl := &Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"3", "4"}}}

	recs := tbl.Records()
	want := []map[string]string{{"a": "1", "b": "2"}, {"a": "3", "b": "4"}}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("Records() mismatch (-want +got):\n%s", diff)
	}
}
