package types

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"sort"
)

type compileMeta struct {
	AccountMeta
	isPayer   bool
	isProgram bool
}

// NewMessage compiles instructions into a legacy message. The payer is
// always the first account; signers precede non-signers, writable accounts
// precede read-only ones, and invoked programs come last.
func NewMessage(payer Pubkey, blockhash Hash, instructions ...Instruction) Message {
	metas := []compileMeta{{
		AccountMeta: AccountMeta{Pubkey: payer, IsSigner: true, IsWritable: true},
		isPayer:     true,
	}}
	for _, ix := range instructions {
		for _, a := range ix.Accounts {
			metas = append(metas, compileMeta{AccountMeta: a})
		}
		metas = append(metas, compileMeta{AccountMeta: AccountMeta{Pubkey: ix.ProgramID}, isProgram: true})
	}
	metas = dedupeMetas(metas)

	sort.SliceStable(metas, func(i, j int) bool {
		a, b := metas[i], metas[j]
		if a.isPayer != b.isPayer {
			return a.isPayer
		}
		if a.IsSigner != b.IsSigner {
			return a.IsSigner
		}
		if a.IsWritable != b.IsWritable {
			return a.IsWritable
		}
		if a.isProgram != b.isProgram {
			return !a.isProgram
		}
		return bytes.Compare(a.Pubkey[:], b.Pubkey[:]) < 0
	})

	var m Message
	m.RecentBlockhash = blockhash
	index := make(map[Pubkey]uint8, len(metas))
	for i, meta := range metas {
		m.AccountKeys = append(m.AccountKeys, meta.Pubkey)
		index[meta.Pubkey] = uint8(i)
		if meta.IsSigner {
			m.Header.NumRequiredSignatures++
			if !meta.IsWritable {
				m.Header.NumReadonlySignedAccounts++
			}
		} else if !meta.IsWritable {
			m.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		c := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, a := range ix.Accounts {
			c.AccountIndices = append(c.AccountIndices, index[a.Pubkey])
		}
		m.Instructions = append(m.Instructions, c)
	}
	return m
}

func dedupeMetas(metas []compileMeta) []compileMeta {
	out := make([]compileMeta, 0, len(metas))
	seen := make(map[Pubkey]int, len(metas))
	for _, meta := range metas {
		if i, ok := seen[meta.Pubkey]; ok {
			out[i].IsSigner = out[i].IsSigner || meta.IsSigner
			out[i].IsWritable = out[i].IsWritable || meta.IsWritable
			out[i].isPayer = out[i].isPayer || meta.isPayer
			out[i].isProgram = out[i].isProgram && meta.isProgram
			continue
		}
		seen[meta.Pubkey] = len(out)
		out = append(out, meta)
	}
	return out
}

// NewTransaction compiles instructions into an unsigned transaction with
// one empty signature slot per required signer.
func NewTransaction(payer Pubkey, blockhash Hash, instructions ...Instruction) *Transaction {
	msg := NewMessage(payer, blockhash, instructions...)
	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}
}

// Sign fills the signature slots belonging to the given keys.
func (tx *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	msg, err := tx.Message.Serialize()
	if err != nil {
		return err
	}
	for _, key := range signers {
		pub, err := PubkeyFromBytes(key.Public().(ed25519.PublicKey))
		if err != nil {
			return err
		}
		idx := -1
		for i, k := range tx.Message.Signers() {
			if k == pub {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("signing account %s is not a required signer", pub)
		}
		copy(tx.Signatures[idx][:], ed25519.Sign(key, msg))
	}
	return nil
}
