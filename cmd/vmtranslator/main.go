// Command vmtranslator lowers VM code to hack assembly. Given a single
// foo.vm file it writes a sibling foo.asm without bootstrap code; given a
// directory it links every .vm file inside into one DIR/DIR.asm image,
// bootstrap included.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"hacktoolchain/vmtranslator"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if len(os.Args) != 2 {
		log.Fatal().Msg("usage: vmtranslator <file.vm | directory>")
	}
	path := os.Args[1]
	info, err := os.Stat(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("cannot stat input")
	}
	if info.IsDir() {
		err = vmtranslator.TranslateDir(path)
	} else {
		err = vmtranslator.TranslateFile(path)
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("translation failed")
	}
	log.Info().Str("input", path).Msg("translated")
}
