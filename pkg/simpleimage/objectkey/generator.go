package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for storage key allocation strategies.
// Every call allocates a fresh key; keys are never reused.
type Generator interface {
	GenerateKey(meta KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	ImageID  string
	Format   string
	FileName string
	Original bool
}

// FlatGenerator allocates bare UUID keys.
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(meta KeyMetadata) string {
	return uuid.NewString()
}

// ShardedGenerator provides Git-style sharded keys with original/derived separation
// Original: originals/ab/cd1234ef5678.jpg
// Derived:  derived/png/ab/cd1234ef5678.png
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(meta KeyMetadata) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard > len(id) {
		shard = 2
	}
	shardDir, remaining := id[:shard], id[shard:]

	filename := remaining
	if meta.Format != "" {
		filename = remaining + "." + sanitizePathComponent(meta.Format)
	}

	if meta.Original || meta.Format == "" {
		return fmt.Sprintf("originals/%s/%s", shardDir, filename)
	}
	return fmt.Sprintf("derived/%s/%s/%s", sanitizePathComponent(meta.Format), shardDir, filename)
}

// CustomFuncGenerator allows callers to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(meta KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(meta KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(meta KeyMetadata) string {
	return g.GenerateFunc(meta)
}

// New returns the generator for a layout name: "flat" (default) or "sharded".
func New(layout string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(layout)) {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "sharded", "git-like":
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key layout: %s", layout)
	}
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
