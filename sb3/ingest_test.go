package sb3

import (
	"testing"

	"github.com/lfmoo/scratchvm/ast"
)

const setAndSayProject = `{
  "targets": [
    {
      "isStage": true,
      "name": "Stage",
      "variables": {"varid1": ["myVar", 0]},
      "broadcasts": {"bcid1": "msg1"},
      "blocks": {}
    },
    {
      "isStage": false,
      "name": "Sprite1",
      "variables": {},
      "broadcasts": {},
      "blocks": {
        "flag1": {
          "opcode": "event_whenflagclicked",
          "next": "set1",
          "parent": null,
          "inputs": {},
          "fields": {},
          "topLevel": true
        },
        "set1": {
          "opcode": "data_setvariableto",
          "next": "say1",
          "parent": "flag1",
          "inputs": {"VALUE": [1, [10, "hello world"]]},
          "fields": {"VARIABLE": ["myVar", "varid1"]},
          "topLevel": false
        },
        "say1": {
          "opcode": "looks_say",
          "next": null,
          "parent": "set1",
          "inputs": {"MESSAGE": [1, "varref1"]},
          "fields": {},
          "topLevel": false
        },
        "varref1": {
          "opcode": "data_variable",
          "next": null,
          "parent": "say1",
          "inputs": {},
          "fields": {"VARIABLE": ["myVar", "varid1"]},
          "topLevel": false
        }
      }
    }
  ]
}`

func TestParseSetAndSay(t *testing.T) {
	proj, err := Parse([]byte(setAndSayProject))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(proj.Variables) != 1 || proj.Variables[0].Name != "myVar" {
		t.Fatalf("globals: %+v", proj.Variables)
	}
	if len(proj.Events) != 1 || proj.Events[0].Name != "msg1" {
		t.Fatalf("events: %+v", proj.Events)
	}
	if len(proj.Targets) != 2 {
		t.Fatalf("targets: %d", len(proj.Targets))
	}

	sprite := proj.Targets[1]
	if sprite.Name != "Sprite1" || sprite.IsStage {
		t.Fatalf("sprite target: %+v", sprite)
	}
	if len(sprite.Scripts) != 1 {
		t.Fatalf("expected 1 script, got %d", len(sprite.Scripts))
	}

	script := sprite.Scripts[0]
	if script.Start.Kind != ast.FlagClicked {
		t.Fatalf("start kind: %v", script.Start.Kind)
	}
	if len(script.Blocks) != 2 {
		t.Fatalf("expected 2 statement blocks, got %d", len(script.Blocks))
	}

	setBlock := script.Blocks[0]
	if setBlock.Opcode != "data_setvariableto" {
		t.Fatalf("first block opcode: %s", setBlock.Opcode)
	}
	if setBlock.Fields["VARIABLE"].ID != "varid1" {
		t.Fatalf("variable field: %+v", setBlock.Fields["VARIABLE"])
	}
	valueIn := setBlock.Inputs["VALUE"]
	if !valueIn.IsSingleValue() {
		t.Fatalf("VALUE input should be single value")
	}
	prim, ok := valueIn.Blocks[0].TryAsPrimitive()
	if !ok || prim.Kind != ast.PrimitiveText || prim.Text != "hello world" {
		t.Fatalf("inline primitive: %+v ok=%v", prim, ok)
	}

	sayBlock := script.Blocks[1]
	if sayBlock.Opcode != "looks_say" {
		t.Fatalf("second block opcode: %s", sayBlock.Opcode)
	}
	msgIn := sayBlock.Inputs["MESSAGE"]
	if !msgIn.IsSingleValue() {
		t.Fatalf("MESSAGE input should be single value")
	}
	varPrim, ok := msgIn.Blocks[0].TryAsPrimitive()
	if !ok || varPrim.Kind != ast.PrimitiveVariable || varPrim.RefID != "varid1" {
		t.Fatalf("variable reporter: %+v ok=%v", varPrim, ok)
	}
}

func TestParseSkipsUnknownTopLevelBlock(t *testing.T) {
	raw := `{
      "targets": [
        {"isStage": true, "name": "Stage", "variables": {}, "broadcasts": {}, "blocks": {}},
        {"isStage": false, "name": "Sprite1", "variables": {}, "broadcasts": {}, "blocks": {
          "orphan1": {"opcode": "motion_movesteps", "next": null, "parent": null, "inputs": {}, "fields": {}, "topLevel": true}
        }}
      ]
    }`
	proj, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(proj.Targets[1].Scripts) != 0 {
		t.Fatalf("expected orphan top-level block to be skipped, got %d scripts", len(proj.Targets[1].Scripts))
	}
}

func TestParseMissingStageIsError(t *testing.T) {
	raw := `{"targets": [{"isStage": false, "name": "Sprite1", "variables": {}, "broadcasts": {}, "blocks": {}}]}`
	if _, err := Parse([]byte(raw)); err == nil {
		t.Fatalf("expected error for missing stage")
	}
}
