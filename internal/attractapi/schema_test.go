package attractapi

import (
	"errors"
	"testing"
)

func TestValidateNodeAcceptsShot(t *testing.T) {
	if err := ValidateNode(validShot()); err != nil {
		t.Fatalf("expected valid shot, got %v", err)
	}
}

func TestValidateNodeRejectsBadDocuments(t *testing.T) {
	cases := map[string]func(n *Node){
		"unknown status":  func(n *Node) { n.Properties.Status = "done" },
		"empty name":      func(n *Node) { n.Name = "" },
		"empty node type": func(n *Node) { n.NodeType = "" },
		"negative cut in": func(n *Node) { n.Properties.CutIn = -1 },
		"negative order":  func(n *Node) { n.Order = -2 },
		"reversed cuts":   func(n *Node) { n.Properties.CutIn = 40; n.Properties.CutOut = 39 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			node := validShot()
			mutate(&node)
			err := ValidateNode(node)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) || validationErr.Resource != ResourceNodes {
				t.Fatalf("expected *ValidationError for nodes, got %T", err)
			}
		})
	}
}

func TestValidateNodeDocumentRejectsMissingProperties(t *testing.T) {
	err := ValidateNodeDocument([]byte(`{"node_type":"nt","name":"sh010","order":0}`))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing properties, got %v", err)
	}
	err = ValidateNodeDocument([]byte(`{not json`))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for malformed json, got %v", err)
	}
}

func TestValidateNodeAllowsZeroLengthShot(t *testing.T) {
	node := validShot()
	node.Properties.CutIn = 12
	node.Properties.CutOut = 12
	if err := ValidateNode(node); err != nil {
		t.Fatalf("equal cut points must be accepted, got %v", err)
	}
}
