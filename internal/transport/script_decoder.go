package transport

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// scriptDecoder extracts the standard script class and addresses of an
// output script for the network of params.
type scriptDecoder struct {
	params *chaincfg.Params
}

func (d scriptDecoder) decode(pkScript []byte) (class string, addresses []string) {
	if len(pkScript) == 0 {
		return txscript.NonStandardTy.String(), nil
	}
	cls, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, d.params)
	if err != nil {
		return txscript.NonStandardTy.String(), nil
	}
	if len(addrs) > 0 {
		addresses = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addresses = append(addresses, addr.EncodeAddress())
		}
	}
	return cls.String(), addresses
}
