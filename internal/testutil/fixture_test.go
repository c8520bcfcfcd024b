package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/span"
)

const sample = `
units:
  - name: util
    kind: library
    functions:
      - name: one
        public: true
        returns: u64
        body:
          literal: 1
root:
  name: main
  kind: script
  functions:
    - name: main
      returns: u64
      body:
        op: add
        left:
          literal: 41
        right:
          literal: 1
`

func TestLoadAndExpand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fx, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(fx.Units) != 1 || fx.Units[0].Name != "util" {
		t.Fatalf("unexpected units: %+v", fx.Units)
	}

	spans := span.NewInterner(path)
	lib, err := fx.Units[0].Module(spans)
	if err != nil {
		t.Fatalf("expand unit: %v", err)
	}
	if lib.Kind != ast.KindLibrary || len(lib.Items) != 1 {
		t.Fatalf("unexpected library module: %+v", lib)
	}

	root, err := fx.Root.Module(spans)
	if err != nil {
		t.Fatalf("expand root: %v", err)
	}
	fn, ok := root.Items[0].(*ast.FnItem)
	if !ok || fn.Name != "main" {
		t.Fatalf("root main missing")
	}
	if _, ok := fn.Body.Tail.(*ast.BinaryExpr); !ok {
		t.Fatalf("body did not expand to a binary expression")
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("root:\n  name: x\n  kind: daemon\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	fx, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, err := fx.Root.Module(span.NewInterner(path)); err == nil {
		t.Fatalf("unknown program kind was accepted")
	}
}
