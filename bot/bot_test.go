package bot

import (
	"reflect"
	"testing"
)

func TestParse_PositionalAndFlags(t *testing.T) {
	name, args, flags, err := parse(`mochi.whitelist.add Steve -server=survival`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if name != "mochi.whitelist.add" {
		t.Fatalf("expected command name, got %q", name)
	}
	if !reflect.DeepEqual(args, []string{"Steve"}) {
		t.Fatalf("unexpected args: %v", args)
	}
	if flags["server"] != "survival" {
		t.Fatalf("expected server flag to be parsed, got %q", flags["server"])
	}
}

func TestParse_BooleanFlag(t *testing.T) {
	_, _, flags, err := parse(`mochi.server.token -r`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	inv := Invocation{Flags: flags}
	if !inv.Flag("r") {
		t.Fatalf("expected boolean flag -r to be set")
	}
}

func TestParse_QuotedArgPreservesSpaces(t *testing.T) {
	_, args, _, err := parse(`mochi.server.register survival "生存服" java paper`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"survival", "生存服", "java", "paper"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("expected %v, got %v", want, args)
	}
}

func TestParse_UnterminatedQuote(t *testing.T) {
	_, _, _, err := parse(`mochi.server.register survival "oops`)
	if err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestParse_EmptyCommand(t *testing.T) {
	_, _, _, err := parse("   ")
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}
