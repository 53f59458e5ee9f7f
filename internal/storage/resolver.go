package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/maypok86/otter"
)

// Resolver maps semantic keys to stable entity ids, inserting a stub row on
// first sight. The boolean result of every get-or-create reports whether
// the row was created by this call.
//
// Ids are cached in memory. The cache is only valid while nothing deletes
// rows behind its back; Store.Clear and Store.Rollback purge it.
type Resolver struct {
	gw    *Gateway
	cache *otter.Cache[string, int64]
}

func newResolver(gw *Gateway, cacheSize int) (*Resolver, error) {
	r := &Resolver{gw: gw}
	if cacheSize > 0 {
		cache, err := otter.MustBuilder[string, int64](cacheSize).
			CollectStats().
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build resolver cache: %w", err)
		}
		r.cache = &cache
	}
	return r, nil
}

// File resolves a file by path.
func (r *Resolver) File(path string) (int64, bool, error) {
	return r.resolve("file\x00"+path,
		SelectID("file").Where("path", Text(path)),
		Insert("file").Set("path", Text(path)).OrIgnore())
}

// Decl resolves a declaration by qualified name.
func (r *Resolver) Decl(name string) (int64, bool, error) {
	return r.resolve("decl\x00"+name,
		SelectID("decl").Where("name", Text(name)),
		Insert("decl").Set("name", Text(name)).OrIgnore())
}

// Function resolves a function by rendered signature.
func (r *Resolver) Function(signature string) (int64, bool, error) {
	return r.resolve("func\x00"+signature,
		SelectID("func").Where("signature", Text(signature)),
		Insert("func").Set("signature", Text(signature)).OrIgnore())
}

// Type resolves a type by canonical name and template parameter slot. Use
// slot -1 for types that are not template parameter uses.
func (r *Resolver) Type(name string, slot int) (int64, bool, error) {
	return r.resolve(typeKey(name, slot),
		SelectID("type").Where("name", Text(name)).Where("template_parameter_index", Int(slot)),
		Insert("type").Set("name", Text(name)).Set("template_parameter_index", Int(slot)).OrIgnore())
}

// VarDecl resolves a variable declaration by its end location.
func (r *Resolver) VarDecl(fileID int64, endLine, endColumn int) (int64, bool, error) {
	return r.resolve(varKey(fileID, endLine, endColumn),
		varDeclLookup(fileID, endLine, endColumn),
		Insert("var_decl").
			Set("file_id", Ref(fileID)).
			Set("end_line", Int(endLine)).
			Set("end_column", Int(endColumn)).
			OrIgnore())
}

// LookupFile finds a file without creating it.
func (r *Resolver) LookupFile(path string) (int64, bool, error) {
	return r.lookup("file\x00"+path, SelectID("file").Where("path", Text(path)))
}

// LookupDecl finds a declaration without creating it.
func (r *Resolver) LookupDecl(name string) (int64, bool, error) {
	return r.lookup("decl\x00"+name, SelectID("decl").Where("name", Text(name)))
}

// LookupFunction finds a function without creating it.
func (r *Resolver) LookupFunction(signature string) (int64, bool, error) {
	return r.lookup("func\x00"+signature, SelectID("func").Where("signature", Text(signature)))
}

// LookupVarDecl finds a variable declaration without creating it.
func (r *Resolver) LookupVarDecl(fileID int64, endLine, endColumn int) (int64, bool, error) {
	return r.lookup(varKey(fileID, endLine, endColumn), varDeclLookup(fileID, endLine, endColumn))
}

// DeclKind returns the kind tag of an indexed declaration. A stub or an
// unknown name reads as "".
func (r *Resolver) DeclKind(name string) (string, error) {
	var kind sql.NullString
	if _, err := r.gw.Scalar(SelectColumn("decl", "type").Where("name", Text(name)), &kind); err != nil {
		return "", err
	}
	return kind.String, nil
}

// CacheStats reports resolver cache hits and misses.
func (r *Resolver) CacheStats() (hits, misses int64) {
	if r.cache == nil {
		return 0, 0
	}
	stats := r.cache.Stats()
	return stats.Hits(), stats.Misses()
}

// Purge forgets every cached id.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Clear()
	}
}

func (r *Resolver) close() {
	if r.cache != nil {
		r.cache.Close()
	}
}

func (r *Resolver) resolve(key string, lookup *SelectStmt, stub *InsertStmt) (int64, bool, error) {
	id, found, err := r.lookup(key, lookup)
	if err != nil || found {
		return id, false, err
	}
	id, inserted, err := r.gw.Insert(stub)
	if err != nil {
		return 0, false, err
	}
	if !inserted {
		// The key exists after all; the lookup missed it.
		id, found, err = r.gw.ScalarInt(lookup)
		if err != nil {
			return 0, false, err
		}
		if !found {
			return 0, false, fmt.Errorf("%s %s: %w: stub neither inserted nor found", stub.Op(), stub.Table(), ErrStatement)
		}
	}
	r.remember(key, id)
	return id, inserted, nil
}

func (r *Resolver) lookup(key string, lookup *SelectStmt) (int64, bool, error) {
	if r.cache != nil {
		if id, ok := r.cache.Get(key); ok {
			return id, true, nil
		}
	}
	id, found, err := r.gw.ScalarInt(lookup)
	if err != nil || !found {
		return 0, false, err
	}
	r.remember(key, id)
	return id, true, nil
}

func (r *Resolver) remember(key string, id int64) {
	if r.cache != nil {
		r.cache.Set(key, id)
	}
}

func typeKey(name string, slot int) string {
	return "type\x00" + strconv.Itoa(slot) + "\x00" + name
}

func varKey(fileID int64, line, col int) string {
	return "var\x00" + strconv.FormatInt(fileID, 10) + ":" + strconv.Itoa(line) + ":" + strconv.Itoa(col)
}

func varDeclLookup(fileID int64, endLine, endColumn int) *SelectStmt {
	return SelectID("var_decl").
		Where("file_id", Ref(fileID)).
		Where("end_line", Int(endLine)).
		Where("end_column", Int(endColumn))
}
