// Package script verifies transaction inputs against the outputs they spend.
package script

import (
	"strings"

	"github.com/btcsuite/btcd/txscript"
)

// Flags selects the consensus rule upgrades enforced during verification.
// Bit positions follow the widely used kernel encoding.
type Flags uint32

const (
	FlagNone                Flags = 0
	FlagP2SH                Flags = 1 << 0
	FlagDERSig              Flags = 1 << 2
	FlagNullDummy           Flags = 1 << 4
	FlagCheckLockTimeVerify Flags = 1 << 9
	FlagCheckSequenceVerify Flags = 1 << 10
	FlagWitness             Flags = 1 << 11
	FlagTaproot             Flags = 1 << 17

	FlagsAll = FlagP2SH | FlagDERSig | FlagNullDummy | FlagCheckLockTimeVerify |
		FlagCheckSequenceVerify | FlagWitness | FlagTaproot
	FlagsAllPreTaproot = FlagsAll &^ FlagTaproot
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagP2SH, "P2SH"},
	{FlagDERSig, "DERSIG"},
	{FlagNullDummy, "NULLDUMMY"},
	{FlagCheckLockTimeVerify, "CHECKLOCKTIMEVERIFY"},
	{FlagCheckSequenceVerify, "CHECKSEQUENCEVERIFY"},
	{FlagWitness, "WITNESS"},
	{FlagTaproot, "TAPROOT"},
}

// Known reports whether f only contains recognised bits.
func (f Flags) Known() bool {
	return f&^FlagsAll == 0
}

// Has reports whether every bit of other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	if f == FlagNone {
		return "NONE"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ FlagsAll; rest != 0 {
		parts = append(parts, "UNKNOWN")
	}
	return strings.Join(parts, ",")
}

// ParseFlags accepts a comma separated list of flag names, "ALL" or
// "ALL_PRE_TAPROOT".
func ParseFlags(s string) (Flags, bool) {
	var f Flags
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		switch part {
		case "", "NONE":
			continue
		case "ALL":
			f |= FlagsAll
			continue
		case "ALL_PRE_TAPROOT":
			f |= FlagsAllPreTaproot
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == part {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return f, true
}

// engineFlags translates f into the txscript engine flags. The consensus
// encoding and the engine disagree on a few names: NULLDUMMY is
// ScriptStrictMultiSig and P2SH is ScriptBip16.
func (f Flags) engineFlags() txscript.ScriptFlags {
	var sf txscript.ScriptFlags
	if f.Has(FlagP2SH) {
		sf |= txscript.ScriptBip16
	}
	if f.Has(FlagDERSig) {
		sf |= txscript.ScriptVerifyDERSignatures
	}
	if f.Has(FlagNullDummy) {
		sf |= txscript.ScriptStrictMultiSig
	}
	if f.Has(FlagCheckLockTimeVerify) {
		sf |= txscript.ScriptVerifyCheckLockTimeVerify
	}
	if f.Has(FlagCheckSequenceVerify) {
		sf |= txscript.ScriptVerifyCheckSequenceVerify
	}
	if f.Has(FlagWitness) {
		sf |= txscript.ScriptVerifyWitness
	}
	if f.Has(FlagTaproot) {
		sf |= txscript.ScriptVerifyTaproot
	}
	return sf
}
