package app

import (
	"github.com/atomchess/atomboard/internal/position"
	"github.com/atomchess/atomboard/internal/store"
)

// GameDetails are the header fields a user fills in when saving. Empty fields
// keep the current header value.
type GameDetails struct {
	White    string `json:"white"`
	Black    string `json:"black"`
	WhiteElo string `json:"whiteElo"`
	BlackElo string `json:"blackElo"`
	Event    string `json:"event"`
	Date     string `json:"date"`
	Result   string `json:"result"`
}

func (d GameDetails) apply(headers map[string]string) {
	for tag, v := range map[string]string{
		"White":    d.White,
		"Black":    d.Black,
		"WhiteElo": d.WhiteElo,
		"BlackElo": d.BlackElo,
		"Event":    d.Event,
		"Date":     d.Date,
		"Result":   d.Result,
	} {
		if v != "" {
			headers[tag] = v
		}
	}
}

// Save writes the current game to the library, updating it in place when it
// was opened from there, then reopens it at the current move.
func (b *Board) Save(details GameDetails) (store.GameRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lib == nil {
		return store.GameRecord{}, ErrNoLibrary
	}
	if b.hist.Len() == 0 {
		return store.GameRecord{}, ErrNothingToSave
	}

	headers := make(map[string]string, len(b.headers))
	for k, v := range b.headers {
		headers[k] = v
	}
	details.apply(headers)

	text, err := position.ExportPGN(b.hist.StartFEN(), b.hist.Records(), headers)
	if err != nil {
		return store.GameRecord{}, err
	}
	saved, err := b.lib.Save(store.GameRecord{
		Key:    b.key,
		White:  headers["White"],
		Black:  headers["Black"],
		Result: headers["Result"],
		Date:   headers["Date"],
		PGN:    text,
	})
	if err != nil {
		return store.GameRecord{}, err
	}
	b.log.Info().Str("key", saved.Key).Int("moves", b.hist.Len()).Msg("game saved")

	cursor := b.hist.Cursor()
	if err := b.loadPGN(saved.PGN, saved.Key, &cursor); err != nil {
		return saved, err
	}
	return saved, nil
}

// Open loads a saved game for review. at selects the move to show; nil shows
// the final position.
func (b *Board) Open(key string, at *int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lib == nil {
		return ErrNoLibrary
	}
	rec, err := b.lib.Get(key)
	if err != nil {
		return err
	}
	return b.loadPGN(rec.PGN, rec.Key, at)
}

// Games lists the library.
func (b *Board) Games() ([]store.GameRecord, error) {
	if b.lib == nil {
		return nil, ErrNoLibrary
	}
	return b.lib.List()
}

// DeleteGame removes a saved game. The board keeps showing it, detached from
// the library.
func (b *Board) DeleteGame(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lib == nil {
		return ErrNoLibrary
	}
	if err := b.lib.Delete(key); err != nil {
		return err
	}
	if b.key == key {
		b.key = ""
	}
	return nil
}
