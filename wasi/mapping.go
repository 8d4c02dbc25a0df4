package wasi

import (
	"github.com/pgavlin/xos/exec"
	"github.com/pgavlin/xos/sys"
	"github.com/pgavlin/xos/vfs"
)

// ErrnoOf maps a boundary result code to its WASI errno. Codes without an
// individual mapping collapse to ECANCELED.
func ErrnoOf(res sys.Result) Errno {
	switch res {
	case sys.Success:
		return ErrnoSuccess
	case sys.NotFound:
		return ErrnoNoent
	case sys.PermissionDenied:
		return ErrnoAcces
	case sys.AlreadyExists:
		return ErrnoExist
	case sys.InvalidPath:
		return ErrnoInval
	case sys.UnsupportedOperation:
		return ErrnoNotsup
	case sys.ResourceBusy:
		return ErrnoBusy
	case sys.TooManyOpenFiles:
		return ErrnoMfile
	case sys.FileSystemFull:
		return ErrnoNospc
	default:
		return ErrnoCanceled
	}
}

// ResultOf is the inverse of ErrnoOf for the individually mapped pairs.
func ResultOf(errno Errno) sys.Result {
	switch errno {
	case ErrnoSuccess:
		return sys.Success
	case ErrnoNoent:
		return sys.NotFound
	case ErrnoAcces:
		return sys.PermissionDenied
	case ErrnoExist:
		return sys.AlreadyExists
	case ErrnoInval:
		return sys.InvalidPath
	case ErrnoNotsup:
		return sys.UnsupportedOperation
	case ErrnoBusy:
		return sys.ResourceBusy
	case ErrnoMfile:
		return sys.TooManyOpenFiles
	case ErrnoNospc:
		return sys.FileSystemFull
	default:
		return sys.Other
	}
}

// FiletypeOf maps a file kind to its WASI filetype. Pipes have no WASI
// counterpart and surface as the unknown type.
func FiletypeOf(kind vfs.FileKind) Filetype {
	switch kind {
	case vfs.KindFile:
		return FiletypeRegularFile
	case vfs.KindDirectory:
		return FiletypeDirectory
	case vfs.KindSymbolicLink:
		return FiletypeSymbolicLink
	case vfs.KindCharacterDevice:
		return FiletypeCharacterDevice
	case vfs.KindBlockDevice:
		return FiletypeBlockDevice
	case vfs.KindSocket:
		return FiletypeSocketDgram
	default:
		return FiletypeUnknown
	}
}

// FileKindOf is the inverse of FiletypeOf.
func FileKindOf(filetype Filetype) vfs.FileKind {
	switch filetype {
	case FiletypeRegularFile:
		return vfs.KindFile
	case FiletypeDirectory:
		return vfs.KindDirectory
	case FiletypeSymbolicLink:
		return vfs.KindSymbolicLink
	case FiletypeCharacterDevice:
		return vfs.KindCharacterDevice
	case FiletypeBlockDevice:
		return vfs.KindBlockDevice
	case FiletypeSocketDgram, FiletypeSocketStream:
		return vfs.KindSocket
	default:
		return vfs.KindPipe
	}
}

// AccessModeOf maps the internal read/write mask to the wasi-libc triple.
func AccessModeOf(mode vfs.AccessMode) AccessMode {
	if mode.CanWrite() {
		if mode.CanRead() {
			return AccessModeReadWrite
		}
		return AccessModeWriteOnly
	}
	return AccessModeReadOnly
}

// ModeOf is the inverse of AccessModeOf.
func ModeOf(mode AccessMode) vfs.AccessMode {
	switch mode {
	case AccessModeWriteOnly:
		return vfs.Write
	case AccessModeReadWrite:
		return vfs.ReadWrite
	default:
		return vfs.Read
	}
}

// OpenFlagsOf maps WASI oflags to the internal open flags. The directory
// bit routes the open elsewhere and does not map.
func OpenFlagsOf(oflags Oflags) vfs.OpenFlags {
	var flags vfs.OpenFlags
	if oflags&OflagCreat != 0 {
		flags |= vfs.Create
	}
	if oflags&OflagExcl != 0 {
		flags |= vfs.CreateOnly
	}
	if oflags&OflagTrunc != 0 {
		flags |= vfs.Truncate
	}
	return flags
}

// OflagsOf is the inverse of OpenFlagsOf.
func OflagsOf(flags vfs.OpenFlags) Oflags {
	var oflags Oflags
	if flags&vfs.Create != 0 {
		oflags |= OflagCreat
	}
	if flags&vfs.CreateOnly != 0 {
		oflags |= OflagExcl
	}
	if flags&vfs.Truncate != 0 {
		oflags |= OflagTrunc
	}
	return oflags
}

// StatusFlagsOf maps WASI fdflags to the internal status flags. Rsync has
// no internal counterpart and is dropped.
func StatusFlagsOf(fdflags Fdflags) vfs.StatusFlags {
	var status vfs.StatusFlags
	if fdflags&FdflagAppend != 0 {
		status |= vfs.Append
	}
	if fdflags&FdflagSync != 0 {
		status |= vfs.Synchronous
	}
	if fdflags&FdflagDsync != 0 {
		status |= vfs.SynchronousDataOnly
	}
	if fdflags&FdflagNonblock != 0 {
		status |= vfs.NonBlocking
	}
	return status
}

// FdflagsOf is the inverse of StatusFlagsOf.
func FdflagsOf(status vfs.StatusFlags) Fdflags {
	var fdflags Fdflags
	if status&vfs.Append != 0 {
		fdflags |= FdflagAppend
	}
	if status&vfs.Synchronous != 0 {
		fdflags |= FdflagSync
	}
	if status&vfs.SynchronousDataOnly != 0 {
		fdflags |= FdflagDsync
	}
	if status&vfs.NonBlocking != 0 {
		fdflags |= FdflagNonblock
	}
	return fdflags
}

// WhenceOf maps a WASI whence to the internal origin; anything but Cur and
// End is the start origin.
func WhenceOf(whence Whence) vfs.Whence {
	switch whence {
	case WhenceCur:
		return vfs.Current
	case WhenceEnd:
		return vfs.End
	default:
		return vfs.Start
	}
}

// WasiWhenceOf is the inverse of WhenceOf.
func WasiWhenceOf(whence vfs.Whence) Whence {
	switch whence {
	case vfs.Current:
		return WhenceCur
	case vfs.End:
		return WhenceEnd
	default:
		return WhenceSet
	}
}

// TimeFlagsOf maps WASI fstflags to the internal time-selection flags.
func TimeFlagsOf(fstflags Fstflags) vfs.TimeFlags {
	var flags vfs.TimeFlags
	if fstflags&FstflagAtim != 0 {
		flags |= vfs.AccessTime
	}
	if fstflags&FstflagAtimNow != 0 {
		flags |= vfs.AccessTimeNow
	}
	if fstflags&FstflagMtim != 0 {
		flags |= vfs.ModificationTime
	}
	if fstflags&FstflagMtimNow != 0 {
		flags |= vfs.ModificationTimeNow
	}
	return flags
}

// FilestatOf copies an internal statistics snapshot field by field.
func FilestatOf(stat vfs.FileStat) Filestat {
	return Filestat{
		Dev:      stat.Device,
		Ino:      stat.Inode,
		Filetype: FiletypeOf(stat.Kind),
		Nlink:    stat.Links,
		Size:     stat.Size,
		Atim:     stat.AccessTime,
		Mtim:     stat.ModificationTime,
		Ctim:     stat.ChangeTime,
	}
}

// Store writes the filestat at ptr in the guest layout.
func (s *Filestat) Store(m *exec.Memory, ptr uint32) {
	m.PutUint64(s.Dev, ptr)
	m.PutUint64(s.Ino, ptr+8)
	m.PutUint64(uint64(s.Filetype), ptr+16)
	m.PutUint64(s.Nlink, ptr+24)
	m.PutUint64(s.Size, ptr+32)
	m.PutUint64(s.Atim, ptr+40)
	m.PutUint64(s.Mtim, ptr+48)
	m.PutUint64(s.Ctim, ptr+56)
}

// Store writes the dirent header at ptr in the guest layout.
func (d *Dirent) Store(m *exec.Memory, ptr uint32) {
	m.PutUint64(d.Next, ptr)
	m.PutUint64(d.Ino, ptr+8)
	m.PutUint32(d.Namelen, ptr+16)
	m.PutByte(d.Type, ptr+20)
	// bytes 21-23 are padding
	m.PutByte(0, ptr+21)
	m.PutUint16(0, ptr+22)
}
