// Command assembler translates one symbolic foo.asm file into a sibling
// foo.hack machine code image.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"hacktoolchain/assembler"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if len(os.Args) != 2 {
		log.Fatal().Msg("usage: assembler <file.asm>")
	}
	src := os.Args[1]
	if filepath.Ext(src) != ".asm" {
		log.Fatal().Str("path", src).Msg("input must be a .asm file")
	}
	dst := strings.TrimSuffix(src, ".asm") + ".hack"
	if err := assembler.AssembleFile(src, dst); err != nil {
		log.Fatal().Err(err).Str("path", src).Msg("assembly failed")
	}
	log.Info().Str("input", src).Str("output", dst).Msg("assembled")
}
