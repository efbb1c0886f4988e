package main

import (
	"time"

	"github.com/google/uuid"
)

// Boost TLV record types (bLIP-10 style).
const (
	TLVTypeBoost   uint64 = 7629169   // podcast boost metadata JSON
	TLVTypeMessage uint64 = 7629171   // raw UTF-8 message
	TLVTypeSphinx  uint64 = 133773310 // Sphinx-compatible JSON mirror
)

// BoostMetadata is the descriptive payload attached to a boost payment
// batch. Purely descriptive, attached 1:1 to the batch, with no identity
// or uniqueness invariant.
type BoostMetadata struct {
	Title       string `json:"title,omitempty"`    // track/episode title
	Artist      string `json:"artist,omitempty"`   // podcast/artist name
	Album       string `json:"album,omitempty"`    // album/show name
	URL         string `json:"url,omitempty"`      // feed URL
	FeedGUID    string `json:"feedGuid,omitempty"` // podcast:guid
	ItemGUID    string `json:"itemGuid,omitempty"` // episode guid
	FeedID      int64  `json:"feedId,omitempty"`   // Podcast Index feed id
	ItemID      int64  `json:"itemId,omitempty"`   // Podcast Index item id
	Timestamp   int64  `json:"ts,omitempty"`       // playback position, seconds
	SenderName  string `json:"senderName,omitempty"`
	Message     string `json:"message,omitempty"` // free-text boost message
}

// boostPayload is the JSON carried in TLV 7629169 (podcast namespace).
type boostPayload struct {
	Podcast        string `json:"podcast,omitempty"`
	Episode        string `json:"episode,omitempty"`
	Album          string `json:"album,omitempty"`
	URL            string `json:"url,omitempty"`
	Guid           string `json:"guid,omitempty"`
	EpisodeGuid    string `json:"episode_guid,omitempty"`
	FeedID         int64  `json:"feedID,omitempty"`
	ItemID         int64  `json:"itemID,omitempty"`
	Timestamp      int64  `json:"ts,omitempty"`
	Action         string `json:"action"`
	AppName        string `json:"app_name"`
	AppVersion     string `json:"app_version,omitempty"`
	ValueMsat      int64  `json:"value_msat"`
	ValueMsatTotal int64  `json:"value_msat_total"`
	Name           string `json:"name,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
	Message        string `json:"message,omitempty"`
	UUID           string `json:"uuid"`
	Time           string `json:"time,omitempty"`
}

// sphinxPayload mirrors the boost data for Sphinx-client interoperability
// (TLV 133773310).
type sphinxPayload struct {
	FeedID     interface{} `json:"feedID,omitempty"`
	ItemID     interface{} `json:"itemID,omitempty"`
	Title      string      `json:"title,omitempty"`
	Text       string      `json:"text,omitempty"`
	Timestamp  int64       `json:"ts,omitempty"`
	AmountMsat int64       `json:"amt_msat"`
	UUID       string      `json:"uuid,omitempty"`
}

// BuildBoostRecords produces the TLV custom records for one keysend
// payment. Up to three records: the podcast boost JSON, the raw message
// (only when a custom message is present), and the Sphinx mirror.
//
// Field lengths are not validated; wallets may reject oversized TLV
// payloads.
func BuildBoostRecords(meta BoostMetadata, recipientName string, amountSats, totalSats int64, appName, appVersion string) map[uint64]string {
	id := uuid.NewString()
	now := time.Now()

	boost := boostPayload{
		Podcast:        meta.Artist,
		Episode:        meta.Title,
		Album:          meta.Album,
		URL:            meta.URL,
		Guid:           meta.FeedGUID,
		EpisodeGuid:    meta.ItemGUID,
		FeedID:         meta.FeedID,
		ItemID:         meta.ItemID,
		Timestamp:      meta.Timestamp,
		Action:         "boost",
		AppName:        appName,
		AppVersion:     appVersion,
		ValueMsat:      amountSats * 1000,
		ValueMsatTotal: totalSats * 1000,
		Name:           recipientName,
		SenderName:     meta.SenderName,
		Message:        meta.Message,
		UUID:           id,
		Time:           now.Format("15:04:05"),
	}

	records := map[uint64]string{
		TLVTypeBoost: mustJSON(boost),
	}

	if meta.Message != "" {
		records[TLVTypeMessage] = meta.Message
	}

	sphinx := sphinxPayload{
		Title:      meta.Title,
		Text:       meta.Message,
		Timestamp:  meta.Timestamp,
		AmountMsat: amountSats * 1000,
		UUID:       id,
	}
	if meta.FeedID != 0 {
		sphinx.FeedID = meta.FeedID
	}
	if meta.ItemID != 0 {
		sphinx.ItemID = meta.ItemID
	}
	records[TLVTypeSphinx] = mustJSON(sphinx)

	return records
}
