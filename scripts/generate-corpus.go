//go:build ignore

// Package main generates a synthetic listing corpus for ingest and
// retrieval benchmarking.
// Usage: go run scripts/generate-corpus.go -chunks 10000 -output corpus.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

var (
	numChunks = flag.Int("chunks", 10000, "Number of chunks to generate")
	output    = flag.String("output", "corpus.jsonl", "Output JSONL file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	kinds = []string{"Apartamento", "Casa", "Cobertura", "Terreno", "Sala comercial", "Chácara", "Sobrado", "Kitnet"}
	areas = []string{"Centro", "Santa Mônica", "Jardim Karaíba", "Tibery", "Umuarama", "Morada da Colina", "Setor Norte", "Granja Marileusa"}
	perks = []string{
		"com piscina e jardim",
		"próximo à universidade",
		"recém reformado",
		"com área gourmet",
		"em condomínio fechado",
		"com vista para o parque",
		"aceita financiamento",
		"com armários planejados",
	}
)

type record struct {
	ID            string            `json:"id"`
	DocumentID    string            `json:"document_id"`
	SequenceIndex int               `json:"sequence_index"`
	RawText       string            `json:"raw_text"`
	Metadata      map[string]string `json:"metadata"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 0; i < *numChunks; i++ {
		kind := kinds[rng.Intn(len(kinds))]
		area := areas[rng.Intn(len(areas))]
		perk := perks[rng.Intn(len(perks))]
		rooms := 1 + rng.Intn(5)
		price := (80 + rng.Intn(920)) * 1000

		rec := record{
			ID:            fmt.Sprintf("listing-%06d", i),
			DocumentID:    fmt.Sprintf("doc-%05d", i/4),
			SequenceIndex: i % 4,
			RawText: fmt.Sprintf("%s %d quartos no bairro %s, %s. R$ %d",
				kind, rooms, area, perk, price),
			Metadata: map[string]string{
				"bairro": area,
				"tipo":   kind,
			},
		}
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d chunks to %s\n", *numChunks, *output)
}
