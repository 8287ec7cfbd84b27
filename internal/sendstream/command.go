package sendstream

// Opcodes recognized in a command frame's header. Any other opcode is
// treated as unknown: a no-op.
const (
	opSubvolume     = 1
	opSnapshot      = 2
	opMkFile        = 3
	opMkDir         = 4
	opMkNod         = 5
	opMkFIFO        = 6
	opMkSock        = 7
	opSymlink       = 8
	opRename        = 9
	opLink          = 10
	opUnlink        = 11
	opRmdir         = 12
	opSetXattr      = 13
	opRemoveXattr   = 14
	opClone         = 16
	opChmod         = 18
	opChown         = 19
	opUtimes        = 20
	opEnd           = 21
	opUnknown       = 0xFFFF
)

// opcodeName is used in diagnostics only; it never affects behavior.
func opcodeName(op uint16) string {
	switch op {
	case opSubvolume:
		return "subvolume"
	case opSnapshot:
		return "snapshot"
	case opMkFile:
		return "mkfile"
	case opMkDir:
		return "mkdir"
	case opMkNod:
		return "mknod"
	case opMkFIFO:
		return "mkfifo"
	case opMkSock:
		return "mksock"
	case opSymlink:
		return "symlink"
	case opRename:
		return "rename"
	case opLink:
		return "link"
	case opUnlink:
		return "unlink"
	case opRmdir:
		return "rmdir"
	case opSetXattr:
		return "setxattr"
	case opRemoveXattr:
		return "removexattr"
	case opClone:
		return "clone"
	case opChmod:
		return "chmod"
	case opChown:
		return "chown"
	case opUtimes:
		return "utimes"
	case opEnd:
		return "end"
	default:
		return "unknown"
	}
}

// commandHeader is the fixed-width prefix of every command frame.
type commandHeader struct {
	size     uint32
	opcode   uint16
	checksum uint32
}
