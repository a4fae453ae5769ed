package fsadapter

import (
	"context"
	"path"

	"github.com/spf13/afero"
)

func init() {
	Register(BackendMemory, func(opts Options) (Adapter, error) {
		return NewMemory(opts.Mount), nil
	})
}

// Afero adapts any afero.Fs. The mount prefix maps to "/" of the
// filesystem, so wrap host directories with afero.NewBasePathFs.
type Afero struct {
	fs    afero.Fs
	mount mount
}

// NewAfero returns an adapter over fsys.
func NewAfero(fsys afero.Fs, mountPrefix string) *Afero {
	return &Afero{fs: fsys, mount: newMount(mountPrefix)}
}

// NewMemory returns an adapter over a fresh in-memory filesystem.
func NewMemory(mountPrefix string) *Afero {
	return NewAfero(afero.NewMemMapFs(), mountPrefix)
}

// Fs exposes the underlying filesystem, mostly for seeding tests.
func (a *Afero) Fs() afero.Fs { return a.fs }

func (a *Afero) resolve(ctx context.Context, op Op, p string) (string, error) {
	if err := checkContext(ctx, op, p); err != nil {
		return "", err
	}
	rel, err := a.mount.relative(p)
	if err != nil {
		return "", &Error{Op: op, Path: p, Err: err}
	}
	return path.Join("/", rel), nil
}

// requireParent mirrors host semantics: afero's MemMapFs would otherwise
// create missing parents implicitly.
func (a *Afero) requireParent(op Op, logical, p string) error {
	_, err := a.fs.Stat(path.Dir(p))
	return wrap(op, logical, err)
}

func (a *Afero) ReadDir(ctx context.Context, p string) ([]string, error) {
	fp, err := a.resolve(ctx, OpReadDir, p)
	if err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(a.fs, fp)
	if err != nil {
		return nil, wrap(OpReadDir, p, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (a *Afero) ReadFile(ctx context.Context, p string) ([]byte, error) {
	fp, err := a.resolve(ctx, OpReadFile, p)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(a.fs, fp)
	if err != nil {
		return nil, wrap(OpReadFile, p, err)
	}
	return data, nil
}

func (a *Afero) WriteFile(ctx context.Context, p string, data []byte) error {
	fp, err := a.resolve(ctx, OpWriteFile, p)
	if err != nil {
		return err
	}
	if err := a.requireParent(OpWriteFile, p, fp); err != nil {
		return err
	}
	return wrap(OpWriteFile, p, afero.WriteFile(a.fs, fp, data, filePerms))
}

func (a *Afero) Unlink(ctx context.Context, p string) error {
	fp, err := a.resolve(ctx, OpUnlink, p)
	if err != nil {
		return err
	}
	return wrap(OpUnlink, p, a.fs.Remove(fp))
}

func (a *Afero) Rename(ctx context.Context, oldPath, newPath string) error {
	from, err := a.resolve(ctx, OpRename, oldPath)
	if err != nil {
		return err
	}
	to, err := a.resolve(ctx, OpRename, newPath)
	if err != nil {
		return err
	}
	if _, err := a.fs.Stat(from); err != nil {
		return wrap(OpRename, oldPath, err)
	}
	if err := a.requireParent(OpRename, newPath, to); err != nil {
		return err
	}
	return wrap(OpRename, oldPath, a.fs.Rename(from, to))
}

func (a *Afero) Mkdir(ctx context.Context, p string, opts MkdirOptions) error {
	fp, err := a.resolve(ctx, OpMkdir, p)
	if err != nil {
		return err
	}
	if opts.Recursive {
		return wrap(OpMkdir, p, a.fs.MkdirAll(fp, dirPerms))
	}
	if err := a.requireParent(OpMkdir, p, fp); err != nil {
		return err
	}
	return wrap(OpMkdir, p, a.fs.Mkdir(fp, dirPerms))
}
