package zmachine

import "github.com/mvisser/zgrue/zdecode"

// opcodeEntry describes one dispatchable opcode: its name (for diagnostics),
// whether the loop must read a store-variable byte or a branch-offset tail
// before invoking the handler, and the handler itself. Grounded on the
// teacher's opcode table in zmachine/opcode.go, which carries the same
// three pieces of metadata per entry.
type opcodeEntry struct {
	name      string
	hasStore  bool
	hasBranch bool
	fn        handlerFunc
}

type opcodeKey struct {
	count  zdecode.OperandCount
	number uint8
}

// opcodes is the dispatch table, keyed by operand-count family and opcode
// number within that family. Numbers follow the standard Z-Machine opcode
// numbering (2OP 1-based, 1OP/0OP/VAR as laid out in the standard's opcode
// tables), matching the worked examples in spec.md §8 (call=VAR:0=224,
// storew=VAR:1=225).
var opcodes = map[opcodeKey]opcodeEntry{
	// 2OP
	{zdecode.OP2, 1}:  {"je", false, true, opJe},
	{zdecode.OP2, 4}:  {"dec_chk", false, true, opDecChk},
	{zdecode.OP2, 6}:  {"jin", false, true, opJin},
	{zdecode.OP2, 8}:  {"or", true, false, opOr},
	{zdecode.OP2, 9}:  {"and", true, false, opAnd},
	{zdecode.OP2, 10}: {"test_attr", false, true, opTestAttr},
	{zdecode.OP2, 11}: {"set_attr", false, false, opSetAttr},
	{zdecode.OP2, 12}: {"clear_attr", false, false, opClearAttr},
	{zdecode.OP2, 13}: {"store", false, false, opStore},
	{zdecode.OP2, 14}: {"insert_obj", false, false, opInsertObj},
	{zdecode.OP2, 15}: {"loadw", true, false, opLoadw},
	{zdecode.OP2, 16}: {"loadb", true, false, opLoadb},
	{zdecode.OP2, 20}: {"add", true, false, opAdd},
	{zdecode.OP2, 21}: {"sub", true, false, opSub},
	{zdecode.OP2, 22}: {"mul", true, false, opMul},
	{zdecode.OP2, 23}: {"div", true, false, opDiv},
	{zdecode.OP2, 24}: {"mod", true, false, opMod},
	{zdecode.OP2, 5}:  {"inc_chk", false, true, opIncChk},

	// 1OP
	{zdecode.OP1, 0}: {"jz", false, true, opJz},
	{zdecode.OP1, 1}: {"get_sibling", true, true, opGetSibling},
	{zdecode.OP1, 2}: {"get_child", true, true, opGetChild},
	{zdecode.OP1, 3}: {"get_parent", true, false, opGetParent},
	{zdecode.OP1, 11}: {"ret", false, false, opRet},
	{zdecode.OP1, 12}: {"jump", false, false, opJump},

	// 0OP
	{zdecode.OP0, 0}:  {"rtrue", false, false, opRtrue},
	{zdecode.OP0, 1}:  {"rfalse", false, false, opRfalse},
	{zdecode.OP0, 2}:  {"print", false, false, opPrint},
	{zdecode.OP0, 3}:  {"print_ret", false, false, opPrintRet},
	{zdecode.OP0, 11}: {"new_line", false, false, opNewLine},
	{zdecode.OP0, 10}: {"quit", false, false, opQuit},

	// VAR
	{zdecode.VAR, 0}: {"call", true, false, opCall},
	{zdecode.VAR, 1}: {"storew", false, false, opStorew},
	{zdecode.VAR, 3}: {"put_prop", false, false, opPutProp},
	{zdecode.VAR, 4}: {"sread", false, false, opSread},
	{zdecode.VAR, 5}: {"print_char", false, false, opPrintChar},
	{zdecode.VAR, 6}: {"print_num", false, false, opPrintNum},
	{zdecode.VAR, 8}: {"push", false, false, opPush},
	{zdecode.VAR, 9}: {"pull", false, false, opPull},
}
