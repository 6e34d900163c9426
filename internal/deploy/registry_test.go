package deploy

import (
	"testing"

	"github.com/Cyber-Mitch/nilshard/api"
)

const (
	testTemplate = api.Address("0x1111111111111111111111111111111111111111")
	testFactory  = api.Address("0x2222222222222222222222222222222222222222")
	otherFactory = api.Address("0x3333333333333333333333333333333333333333")
)

func TestRegistryOneEntryPerShard(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Entry{Shard: 1, Template: testTemplate, Factory: testFactory}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register(Entry{Shard: 1, Template: testTemplate, Factory: otherFactory})
	if !api.IsCode(err, api.CodeShardAlreadyRegistered) {
		t.Fatalf("expected shard_already_registered, got %v", err)
	}

	entry, ok := r.Lookup(1)
	if !ok {
		t.Fatalf("entry missing after rejected re-registration")
	}
	if entry.Factory != testFactory {
		t.Fatalf("original entry mutated: factory %s", entry.Factory)
	}
}

func TestRegistryDifferentShards(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Entry{Shard: 1, Template: testTemplate, Factory: testFactory}); err != nil {
		t.Fatalf("register shard 1: %v", err)
	}
	if err := r.Register(Entry{Shard: 2, Template: testTemplate, Factory: otherFactory}); err != nil {
		t.Fatalf("register shard 2: %v", err)
	}
	entries := r.Entries()
	if len(entries) != 2 || entries[0].Shard != 1 || entries[1].Shard != 2 {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestRegistryValidatesAddresses(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Entry{Shard: 1, Factory: testFactory}); !api.IsCode(err, api.CodeInvalidTarget) {
		t.Fatalf("expected invalid_target for empty template, got %v", err)
	}
	if err := r.Register(Entry{Shard: 1, Template: "not-hex", Factory: testFactory}); !api.IsCode(err, api.CodeInvalidTarget) {
		t.Fatalf("expected invalid_target for malformed template, got %v", err)
	}
	if err := r.Register(Entry{Shard: 1, Template: testTemplate}); !api.IsCode(err, api.CodeInvalidTarget) {
		t.Fatalf("expected invalid_target for empty factory, got %v", err)
	}
}

func TestCloneBytecodeLayout(t *testing.T) {
	code, err := CloneBytecode(testTemplate)
	if err != nil {
		t.Fatalf("bytecode: %v", err)
	}
	want := len(stubPrefix) + api.AddressLength + len(stubSuffix)
	if len(code) != want {
		t.Fatalf("bytecode length %d, want %d", len(code), want)
	}
	addr, _ := testTemplate.Bytes()
	for i, b := range addr {
		if code[len(stubPrefix)+i] != b {
			t.Fatalf("template address not spliced at offset %d", i)
		}
	}
}

func TestCloneBytecodeRejectsBadTemplate(t *testing.T) {
	if _, err := CloneBytecode("0xdead"); !api.IsCode(err, api.CodeInvalidTarget) {
		t.Fatalf("expected invalid_target, got %v", err)
	}
}
