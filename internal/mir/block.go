package mir

import "fmt"

// Block is a straight-line instruction sequence ending in exactly one
// terminator. During a transformation a block may temporarily be open
// (no terminator yet) or carry a stale terminator the pass still has to
// delete.
type Block struct {
	id     int
	fn     *Function
	Params []*Param
	Instrs []*Instr
}

// Function returns the function owning the block.
func (b *Block) Function() *Function { return b.fn }

// AddParam appends a fresh block parameter of the given type and ownership
// kind and returns it.
func (b *Block) AddParam(typ *Type, own OwnershipKind) *Param {
	p := &Param{id: b.fn.nextValueID, typ: typ, own: own, block: b}
	b.fn.nextValueID++
	b.Params = append(b.Params, p)
	return p
}

// Terminator returns the block's last instruction if it is a terminator,
// else nil.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Kind.IsTerminator() {
		return nil
	}
	return last
}

// Succs returns the successor blocks of the block's terminator.
func (b *Block) Succs() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	out := make([]*Block, len(t.Succs))
	for i, s := range t.Succs {
		out[i] = s.Block
	}
	return out
}

// SplitAt splits the block at the given instruction. A new block is created
// immediately after this one in the function's block list, containing at and
// everything following it; this block keeps everything before. No branch is
// inserted between the two halves: the caller owns wiring the split point.
func (b *Block) SplitAt(at *Instr) *Block {
	idx := b.instrIndex(at)
	tail := b.fn.NewBlockBefore(nil)
	b.fn.MoveBlockAfter(tail, b)
	tail.Instrs = append(tail.Instrs, b.Instrs[idx:]...)
	for _, in := range tail.Instrs {
		in.parent = tail
	}
	b.Instrs = b.Instrs[:idx]
	return tail
}

// MoveBlockAfter repositions bb immediately after the given block.
func (f *Function) MoveBlockAfter(bb, after *Block) {
	f.removeFromList(bb)
	i := f.blockIndex(after)
	f.Blocks = append(f.Blocks, nil)
	copy(f.Blocks[i+2:], f.Blocks[i+1:])
	f.Blocks[i+1] = bb
}

// RemoveInstr deletes the instruction from the block. The instruction must
// belong to this block.
func (b *Block) RemoveInstr(in *Instr) {
	idx := b.instrIndex(in)
	copy(b.Instrs[idx:], b.Instrs[idx+1:])
	b.Instrs = b.Instrs[:len(b.Instrs)-1]
	in.parent = nil
}

func (b *Block) instrIndex(in *Instr) int {
	for i, x := range b.Instrs {
		if x == in {
			return i
		}
	}
	panic(fmt.Sprintf("mir: instruction %s does not belong to block %s", in.Kind, b))
}

func (b *Block) String() string { return fmt.Sprintf("bb%d", b.id) }
