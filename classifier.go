package chainindex

import (
	"regexp"
	"strconv"
)

// verdict recovery action for one failed batch write
type verdict int

const (
	//verdictSplit the store rejected the whole payload, halve the batch
	verdictSplit verdict = iota
	//verdictTrim one record is oversized, drop it and requeue the rest
	verdictTrim
	//verdictDefer transient failure, requeue the same batch after a wait
	verdictDefer
)

//maxConsecutiveFailures transient failures tolerated for one batch lineage
//before the write gives up and the error becomes fatal
const maxConsecutiveFailures = 5

var leadingIndexReg = regexp.MustCompile(`^\s*(\d+)`)

// classify map a failed write to a recovery verdict. For verdictTrim the
// returned index locates the offending record within the batch. An
// entity-too-large error whose message carries no parsable index degrades to
// verdictDefer, never to a trim of a guessed index.
func classify(err error) (verdict, int) {
	switch ErrCode(err) {
	case ErrCodePayloadTooLarge:
		return verdictSplit, 0
	case ErrCodeEntityTooLarge:
		if index, ok := offendingIndex(err); ok {
			return verdictTrim, index
		}
	}
	return verdictDefer, 0
}

//offendingIndex parse the leading integer of the error message
func offendingIndex(err error) (int, bool) {
	msg := err.Error()
	if be, ok := err.(BatchError); ok {
		msg = be.Message()
	}
	m := leadingIndexReg.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	index, e := strconv.Atoi(m[1])
	if e != nil {
		return 0, false
	}
	return index, true
}
