package txdecoder

import "github.com/ethereum/go-ethereum/rlp"

// nthElementContent returns the content bytes of the n-th top-level element
// of the RLP list encoded in list (0-indexed), skipping every element before
// it without decoding them into a concrete type. Used to pull just
// `to`/`value`/`input` out of a transaction's field list.
func nthElementContent(list []byte, n int) ([]byte, error) {
	body, _, err := rlp.SplitList(list)
	if err != nil {
		return nil, err
	}
	rest := body
	var content []byte
	for i := 0; i <= n; i++ {
		_, content, rest, err = rlp.Split(rest)
		if err != nil {
			return nil, err
		}
	}
	return content, nil
}
