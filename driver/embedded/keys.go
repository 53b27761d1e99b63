package embedded

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/model"
)

// key layout:
//
//	meta/collections/<collection>                         -> collectionMeta
//	meta/indexes/<collection>/<index>                     -> model.Index
//	doc/<collection>/<seq>                                -> document json
//	id/<collection>/<_id>                                 -> seq
//	idx/<collection>/<index>/<value>.<value>.../<seq>     -> seq
//
// seq is a zero padded hex counter so documents iterate in insertion order.
// index values are hex encoded canonical value keys so they never contain a separator.
const (
	collectionsPrefix = "meta/collections/"
	indexMetaPrefix   = "meta/indexes/"
	docsPrefix        = "doc/"
	idsPrefix         = "id/"
	entriesPrefix     = "idx/"
)

func collectionKey(collection string) []byte {
	return []byte(collectionsPrefix + collection)
}

func indexMetaCollectionPrefix(collection string) []byte {
	return []byte(indexMetaPrefix + collection + "/")
}

func indexMetaKey(collection, name string) []byte {
	return []byte(indexMetaPrefix + collection + "/" + name)
}

func docPrefix(collection string) []byte {
	return []byte(docsPrefix + collection + "/")
}

func docKey(collection string, seq uint64) []byte {
	return []byte(docsPrefix + collection + "/" + formatSeq(seq))
}

func idPrefix(collection string) []byte {
	return []byte(idsPrefix + collection + "/")
}

func idKey(collection, id string) []byte {
	return []byte(idsPrefix + collection + "/" + id)
}

func entriesCollectionPrefix(collection string) []byte {
	return []byte(entriesPrefix + collection + "/")
}

func entriesIndexPrefix(collection, index string) []byte {
	return []byte(entriesPrefix + collection + "/" + index + "/")
}

func entryPrefix(collection, index string, values []model.Value) []byte {
	return []byte(entriesPrefix + collection + "/" + index + "/" + encodeValues(values) + "/")
}

func entryKey(collection, index string, values []model.Value, seq uint64) []byte {
	return append(entryPrefix(collection, index, values), []byte(formatSeq(seq))...)
}

func encodeValues(values []model.Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, hex.EncodeToString([]byte(v.Key())))
	}
	return strings.Join(parts, ".")
}

func formatSeq(seq uint64) string {
	return fmt.Sprintf("%016x", seq)
}

func parseSeq(raw []byte) (uint64, error) {
	seq, err := strconv.ParseUint(string(raw), 16, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.Internal, "corrupt sequence: %s", string(raw))
	}
	return seq, nil
}
