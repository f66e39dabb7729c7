// Command indexer scans a voices directory and writes index.json next to the
// clips. Run it after adding or renaming voice files.
package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/keshon/voxline/internal/catalog"
	"github.com/keshon/voxline/internal/logging"
)

func main() {
	dir := flag.String("dir", "data/voices", "voices directory to index")
	flag.Parse()

	logging.Setup(logging.DefaultConfig())

	lines, err := catalog.ScanDir(*dir)
	if err != nil {
		log.Fatal().Err(err).Msg("scan failed")
	}
	if err := catalog.SaveIndex(*dir, lines); err != nil {
		log.Fatal().Err(err).Msg("write index failed")
	}

	cat := catalog.New(nil)
	if err := cat.SetLines(lines); err != nil {
		log.Fatal().Err(err).Msg("index sanity check failed")
	}
	for _, tc := range cat.Tags() {
		log.Info().Str("tag", tc.Tag).Int("lines", tc.Lines).Msg("indexed")
	}
	log.Info().Int("total", len(lines)).Str("dir", *dir).Msg("voice index written")
}
