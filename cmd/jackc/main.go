// Command jackc compiles jack source to VM code. Given a single foo.jack
// file it writes a sibling foo.vm; given a directory it compiles every
// .jack file inside, one .vm per class.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"hacktoolchain/compiler"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if len(os.Args) != 2 {
		log.Fatal().Msg("usage: jackc <file.jack | directory>")
	}
	path := os.Args[1]
	info, err := os.Stat(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("cannot stat input")
	}
	if info.IsDir() {
		err = compiler.CompileDir(path)
	} else {
		err = compiler.CompileFile(path)
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("compilation failed")
	}
	log.Info().Str("input", path).Msg("compiled")
}
