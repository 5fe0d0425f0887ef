package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	for _, name := range []string{"migrate", "create-user", "macros"} {
		if !strings.Contains(out, name) {
			t.Errorf("help output missing %q command", name)
		}
	}
}

func TestMacrosCommand(t *testing.T) {
	out, err := runCLI(t, "macros",
		"--weight", "70", "--height", "1.75", "--age", "30", "--sex", "male",
		"--activity", "moderate", "--goal", "maintain")
	if err != nil {
		t.Fatalf("macros: %v", err)
	}
	for _, want := range []string{
		"BMR:      1648.75 kcal",
		"TDEE:     2555.56 kcal",
		"Calories: 2556 kcal",
		"Protein:  126.0 g",
		"Carbs:    337.2 g",
		"Fat:      78.1 g",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMacrosCommandAccentedTokens(t *testing.T) {
	out, err := runCLI(t, "macros",
		"--weight", "62", "--height", "1.65", "--age", "28", "--sex", "femme",
		"--activity", "Très Actif", "--goal", "perte")
	if err != nil {
		t.Fatalf("macros: %v", err)
	}
	if !strings.Contains(out, "Activity: very_active") || !strings.Contains(out, "Goal:     loss") {
		t.Errorf("tokens not normalised:\n%s", out)
	}
}

func TestMacrosCommandInsufficientData(t *testing.T) {
	_, err := runCLI(t, "macros",
		"--weight", "70", "--height", "1.75", "--age", "0", "--sex", "male",
		"--activity", "moderate", "--goal", "maintain")
	if err == nil || !strings.Contains(err.Error(), "insufficient data") {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestDescriptionFromFilename(t *testing.T) {
	cases := map[string]string{
		"2026-01-10-001-create-core-tables.sql":      "create core tables",
		"2026-01-11-001-create-nutrition-tables.sql": "create nutrition tables",
		"adhoc-fix.sql": "adhoc fix",
	}
	for in, want := range cases {
		if got := descriptionFromFilename(in); got != want {
			t.Errorf("descriptionFromFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMigrationFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2026-02-01-001-b.sql", "2026-01-01-001-a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 sql files, got %v", files)
	}
	if filepath.Base(files[0]) != "2026-01-01-001-a.sql" {
		t.Errorf("files not sorted: %v", files)
	}
}

func TestMigrationFilesEmptyDir(t *testing.T) {
	if _, err := migrationFiles(t.TempDir()); err == nil {
		t.Fatal("expected error for empty migration dir")
	}
}

func TestPromptUser(t *testing.T) {
	in := strings.NewReader("Coach Carter\ncoach@example.com\nsupersecret\n")
	u, err := promptUser(in, &bytes.Buffer{}, "Coach")
	if err != nil {
		t.Fatalf("promptUser: %v", err)
	}
	if u.FullName != "Coach Carter" || u.Email != "coach@example.com" || u.Role != "Coach" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestPromptUserValidation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		role  string
	}{
		{"bad role", "A\na@b.c\nsupersecret\n", "Owner"},
		{"missing name", "\na@b.c\nsupersecret\n", "Coach"},
		{"bad email", "A\nnot-an-email\nsupersecret\n", "Coach"},
		{"short password", "A\na@b.c\nshort\n", "Coach"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := promptUser(strings.NewReader(tt.input), &bytes.Buffer{}, tt.role); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
