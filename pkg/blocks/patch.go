package blocks

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/pkg/errors"
)

// PatchOp is a single RFC 6902 operation on a block document.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func Replace(path string, value any) PatchOp {
	return PatchOp{Op: "replace", Path: path, Value: value}
}

func Add(path string, value any) PatchOp {
	return PatchOp{Op: "add", Path: path, Value: value}
}

// ReplaceData replaces the whole data document of a block.
func ReplaceData(value any) PatchOp {
	return Replace("/data", value)
}

// AppendSubStep appends a research sub-step.
func AppendSubStep(step SubStep) PatchOp {
	return Add("/data/subSteps/-", step)
}

// ReplaceSubStep replaces the research sub-step at index.
func ReplaceSubStep(index int, step SubStep) PatchOp {
	return Replace(fmt.Sprintf("/data/subSteps/%d", index), step)
}

// ApplyToDocument applies ops to a JSON document.
func ApplyToDocument(doc []byte, ops []PatchOp) ([]byte, error) {
	if len(ops) == 0 {
		return doc, nil
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, errors.Wrap(err, "marshal patch")
	}
	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode patch")
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, errors.Wrap(err, "apply patch")
	}
	return out, nil
}

// Apply returns b with ops applied. The block ID and type cannot be patched.
func Apply(b Block, ops []PatchOp) (Block, error) {
	doc, err := json.Marshal(b)
	if err != nil {
		return Block{}, errors.Wrap(err, "marshal block")
	}
	patched, err := ApplyToDocument(doc, ops)
	if err != nil {
		return Block{}, errors.Wrapf(err, "block %s", b.ID)
	}
	var out Block
	if err := json.Unmarshal(patched, &out); err != nil {
		return Block{}, errors.Wrap(err, "unmarshal patched block")
	}
	if out.ID != b.ID || out.Type != b.Type {
		return Block{}, errors.Errorf("patch may not change id or type of block %s", b.ID)
	}
	return out, nil
}
