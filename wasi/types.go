// This file describes the guest-visible WASI interface: error numbers,
// flags, and the layouts of the pointer-bearing structures the bridge
// marshals across the memory boundary. Values match wasi_snapshot_preview1.

package wasi

// Errno is a WASI error number.
type Errno = uint16

const (
	ErrnoSuccess        Errno = 0
	Errno2big           Errno = 1
	ErrnoAcces          Errno = 2
	ErrnoAddrinuse      Errno = 3
	ErrnoAddrnotavail   Errno = 4
	ErrnoAfnosupport    Errno = 5
	ErrnoAgain          Errno = 6
	ErrnoAlready        Errno = 7
	ErrnoBadf           Errno = 8
	ErrnoBadmsg         Errno = 9
	ErrnoBusy           Errno = 10
	ErrnoCanceled       Errno = 11
	ErrnoChild          Errno = 12
	ErrnoConnaborted    Errno = 13
	ErrnoConnrefused    Errno = 14
	ErrnoConnreset      Errno = 15
	ErrnoDeadlk         Errno = 16
	ErrnoDestaddrreq    Errno = 17
	ErrnoDom            Errno = 18
	ErrnoDquot          Errno = 19
	ErrnoExist          Errno = 20
	ErrnoFault          Errno = 21
	ErrnoFbig           Errno = 22
	ErrnoHostunreach    Errno = 23
	ErrnoIdrm           Errno = 24
	ErrnoIlseq          Errno = 25
	ErrnoInprogress     Errno = 26
	ErrnoIntr           Errno = 27
	ErrnoInval          Errno = 28
	ErrnoIo             Errno = 29
	ErrnoIsconn         Errno = 30
	ErrnoIsdir          Errno = 31
	ErrnoLoop           Errno = 32
	ErrnoMfile          Errno = 33
	ErrnoMlink          Errno = 34
	ErrnoMsgsize        Errno = 35
	ErrnoMultihop       Errno = 36
	ErrnoNametoolong    Errno = 37
	ErrnoNetdown        Errno = 38
	ErrnoNetreset       Errno = 39
	ErrnoNetunreach     Errno = 40
	ErrnoNfile          Errno = 41
	ErrnoNobufs         Errno = 42
	ErrnoNodev          Errno = 43
	ErrnoNoent          Errno = 44
	ErrnoNoexec         Errno = 45
	ErrnoNolck          Errno = 46
	ErrnoNolink         Errno = 47
	ErrnoNomem          Errno = 48
	ErrnoNomsg          Errno = 49
	ErrnoNoprotoopt     Errno = 50
	ErrnoNospc          Errno = 51
	ErrnoNosys          Errno = 52
	ErrnoNotconn        Errno = 53
	ErrnoNotdir         Errno = 54
	ErrnoNotempty       Errno = 55
	ErrnoNotrecoverable Errno = 56
	ErrnoNotsock        Errno = 57
	ErrnoNotsup         Errno = 58
	ErrnoNotty          Errno = 59
	ErrnoNxio           Errno = 60
	ErrnoOverflow       Errno = 61
	ErrnoOwnerdead      Errno = 62
	ErrnoPerm           Errno = 63
	ErrnoPipe           Errno = 64
	ErrnoProto          Errno = 65
	ErrnoProtonosupport Errno = 66
	ErrnoPrototype      Errno = 67
	ErrnoRange          Errno = 68
	ErrnoRofs           Errno = 69
	ErrnoSpipe          Errno = 70
	ErrnoSrch           Errno = 71
	ErrnoStale          Errno = 72
	ErrnoTimedout       Errno = 73
	ErrnoTxtbsy         Errno = 74
	ErrnoXdev           Errno = 75
	ErrnoNotcapable     Errno = 76
)

// Fd is a guest file descriptor.
type Fd = uint32

// Size is a guest size value.
type Size = uint32

// Filesize is a file size or offset.
type Filesize = uint64

// Filedelta is a signed seek delta.
type Filedelta = int64

// Timestamp is nanoseconds since the epoch.
type Timestamp = uint64

// Dircookie identifies a position in a directory stream.
type Dircookie = uint64

// Exitcode is the value passed to proc_exit.
type Exitcode = uint32

// Clockid selects a clock.
type Clockid = uint32

const (
	ClockidRealtime  Clockid = 0
	ClockidMonotonic Clockid = 1
)

// Whence is a seek origin.
type Whence = uint8

const (
	WhenceSet Whence = 0
	WhenceCur Whence = 1
	WhenceEnd Whence = 2
)

// Filetype classifies a filesystem entity.
type Filetype = uint8

const (
	FiletypeUnknown         Filetype = 0
	FiletypeBlockDevice     Filetype = 1
	FiletypeCharacterDevice Filetype = 2
	FiletypeDirectory       Filetype = 3
	FiletypeRegularFile     Filetype = 4
	FiletypeSocketDgram     Filetype = 5
	FiletypeSocketStream    Filetype = 6
	FiletypeSymbolicLink    Filetype = 7
)

// Fdflags are the per-descriptor status flags.
type Fdflags = uint16

const (
	FdflagAppend   Fdflags = 1 << 0
	FdflagDsync    Fdflags = 1 << 1
	FdflagNonblock Fdflags = 1 << 2
	FdflagRsync    Fdflags = 1 << 3
	FdflagSync     Fdflags = 1 << 4
)

// Oflags control open-time behavior.
type Oflags = uint16

const (
	OflagCreat     Oflags = 1 << 0
	OflagDirectory Oflags = 1 << 1
	OflagExcl      Oflags = 1 << 2
	OflagTrunc     Oflags = 1 << 3
)

// Lookupflags control path resolution.
type Lookupflags = uint32

const LookupflagSymlinkFollow Lookupflags = 1 << 0

// Fstflags select timestamps in a set-times call.
type Fstflags = uint16

const (
	FstflagAtim    Fstflags = 1 << 0
	FstflagAtimNow Fstflags = 1 << 1
	FstflagMtim    Fstflags = 1 << 2
	FstflagMtimNow Fstflags = 1 << 3
)

// AccessMode is the wasi-libc view of a descriptor's access rights.
type AccessMode = uint8

const (
	AccessModeReadOnly AccessMode = iota
	AccessModeWriteOnly
	AccessModeReadWrite
)

// Filestat is the guest layout of a file statistics record: 64 bytes, all
// fields 8-byte aligned.
type Filestat struct {
	Dev      uint64
	Ino      uint64
	Filetype Filetype
	Nlink    uint64
	Size     Filesize
	Atim     Timestamp
	Mtim     Timestamp
	Ctim     Timestamp
}

// FilestatSize is the byte size of the guest filestat layout.
const FilestatSize = 64

// Dirent is the guest layout of a directory entry header. The entry name
// follows the header in the output buffer.
type Dirent struct {
	Next    Dircookie
	Ino     uint64
	Namelen uint32
	Type    Filetype
}

// DirentSize is the byte size of the guest dirent layout.
const DirentSize = 24

// IovecSize is the byte size of a guest iovec: a 32-bit pointer and a
// 32-bit length.
const IovecSize = 8
