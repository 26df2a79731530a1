package psbt_sdk

// UtxoType selects which form of previous output data an input carries.
type UtxoType int

const (
	// NonWitness inputs carry the full previous transaction.
	NonWitness UtxoType = 1

	// Witness inputs carry only the spent output's script and amount.
	Witness UtxoType = 2
)

// DustLimit is the smallest change amount, in satoshi, worth creating an
// output for.
const DustLimit int64 = 546

// InputState is the signing progress of one input, derived from its fields.
type InputState int

const (
	// InputUnsigned inputs hold no signatures and no final data.
	InputUnsigned InputState = iota

	// InputPartiallySigned inputs hold at least one partial signature.
	InputPartiallySigned

	// InputFinalized inputs hold a final scriptSig or witness.
	InputFinalized
)

var inputStateStrings = map[InputState]string{
	InputUnsigned:        "unsigned",
	InputPartiallySigned: "partially-signed",
	InputFinalized:       "finalized",
}

func (s InputState) String() string {
	if str, ok := inputStateStrings[s]; ok {
		return str
	}
	return "unknown"
}
