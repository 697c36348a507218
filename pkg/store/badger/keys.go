package badger

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/ecotrack-io/wastetrack/pkg/event"
)

// Key layout. Everything is prefix-scannable:
//
//	evt/<clientID>/<timestamp BE 8 bytes><id>  raw record
//	evtix/<id>                                 record id -> full record key
//	agg/d/<clientID>/<YYYY-MM-DD>              daily aggregate document
//	agg/m/<clientID>/<YYYY-MM>                 monthly aggregate document
//	cfg/client/<clientID>                      tenant config
//	cfg/company/<companyID>                    collector-company config
//	mark/<xxhash64 BE 8 bytes>                 processed-mutation marker
//
// The big-endian timestamp keeps a client's records ordered by time, so a
// backfill range scan is a single contiguous prefix walk.
var (
	prefixEvent      = []byte("evt/")
	prefixEventIndex = []byte("evtix/")
	prefixDaily      = []byte("agg/d/")
	prefixMonthly    = []byte("agg/m/")
	prefixClientCfg  = []byte("cfg/client/")
	prefixCompanyCfg = []byte("cfg/company/")
	prefixMark       = []byte("mark/")
)

func hasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

func eventPrefix(clientID string) []byte {
	key := make([]byte, 0, len(prefixEvent)+len(clientID)+1)
	key = append(key, prefixEvent...)
	key = append(key, clientID...)
	key = append(key, '/')
	return key
}

func eventKey(clientID string, tsMillis int64, id string) []byte {
	key := eventPrefix(clientID)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(tsMillis))
	key = append(key, ts[:]...)
	key = append(key, id...)
	return key
}

// eventTimestamp extracts the timestamp back out of an event key.
func eventTimestamp(key []byte, clientID string) int64 {
	offset := len(prefixEvent) + len(clientID) + 1
	if len(key) < offset+8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(key[offset : offset+8]))
}

func eventIndexKey(id string) []byte {
	return append(append([]byte{}, prefixEventIndex...), id...)
}

func dailyKey(clientID string, day event.DayID) []byte {
	return []byte(string(prefixDaily) + clientID + "/" + string(day))
}

func monthlyKey(clientID string, month event.MonthID) []byte {
	return []byte(string(prefixMonthly) + clientID + "/" + string(month))
}

func clientCfgKey(clientID string) []byte {
	return append(append([]byte{}, prefixClientCfg...), clientID...)
}

func companyCfgKey(companyID string) []byte {
	return append(append([]byte{}, prefixCompanyCfg...), companyID...)
}

// markKey hashes the mutation id so marker keys stay small and fixed-width
// regardless of how callers mint their mutation ids.
func markKey(mutationID string) []byte {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], xxhash.Sum64String(mutationID))
	return append(append([]byte{}, prefixMark...), h[:]...)
}
