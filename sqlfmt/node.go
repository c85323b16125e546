package sqlfmt

import (
	"database/sql"
	"encoding/hex"

	"github.com/andreyvit/saveable"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// objectIDLen is the number of hex characters in an object id.
const objectIDLen = 16

func newObjectID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:objectIDLen]
}

// Node stores one object as rows of the table named after the node. Objects
// that share a name share the table and are told apart by their object id.
type Node struct {
	saveable.ReadState
	s        *Storage
	name     string
	parent   *Node
	objectID string
}

type entry struct {
	row  dataRow
	meta saveable.MetaData
}

func (e *entry) Kind() saveable.Kind { return e.meta.Type }

func newNode(s *Storage, name string, parent *Node, objectID string) *Node {
	return &Node{s: s, name: name, parent: parent, objectID: objectID}
}

func (n *Node) Name() string { return n.name }

func (n *Node) Parent() saveable.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// ObjectID identifies this object's rows within its table.
func (n *Node) ObjectID() string { return n.objectID }

func (n *Node) insert(meta saveable.MetaData, data sql.NullString) error {
	metaID, err := n.s.metaID(meta)
	if err != nil {
		return saveable.FieldErrf(n.name, meta.Name, err, "")
	}
	row := dataRow{ObjectID: n.objectID, Data: data, MetaData: metaID}
	if _, err := n.s.tx.NamedExec(insertRowSQL(n.name), &row); err != nil {
		return saveable.FieldErrf(n.name, meta.Name, err, "insert")
	}
	return nil
}

// ValidateField rejects nested objects whose table name is reserved, so Save
// fails before anything is written.
func (n *Node) ValidateField(node string, f saveable.DataField) error {
	if f.Meta.Type == saveable.KindObject && reservedTable(f.Meta.Name) {
		return saveable.FieldErrf(node, f.Meta.Name, saveable.ErrUnsupported, "name is reserved for an internal table")
	}
	return nil
}

func (n *Node) CreateChild(meta saveable.MetaData) (saveable.Node, error) {
	if reservedTable(meta.Name) {
		return nil, saveable.FieldErrf(n.name, meta.Name, saveable.ErrUnsupported, "name is reserved for an internal table")
	}
	child := newNode(n.s, meta.Name, n, newObjectID())
	if err := n.s.ensureTable(child.name); err != nil {
		return nil, saveable.FieldErrf(n.name, meta.Name, err, "creating table")
	}
	metaID, err := n.s.metaID(meta)
	if err != nil {
		return nil, saveable.FieldErrf(n.name, meta.Name, err, "")
	}
	row := dataRow{
		ObjectID:    n.objectID,
		MetaData:    metaID,
		Reference:   sql.NullString{String: child.name, Valid: true},
		ReferenceID: sql.NullString{String: child.objectID, Valid: true},
	}
	if _, err := n.s.tx.NamedExec(insertRowSQL(n.name), &row); err != nil {
		return nil, saveable.FieldErrf(n.name, meta.Name, err, "insert reference")
	}
	return child, nil
}

func (n *Node) WritePrimitive(f saveable.DataField) error {
	if _, ok := saveable.KindOfScalar(f.Value); !ok || f.Value == nil {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrUnsupported, "data type %T is not supported", f.Value)
	}
	return n.insert(f.Meta, sql.NullString{String: saveable.FormatScalar(f.Value), Valid: true})
}

// WriteIterable writes one row per element. An empty collection is a single
// row without data so that its metadata survives.
func (n *Node) WriteIterable(f saveable.DataField) error {
	items, ok := f.Value.([]any)
	if !ok {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrUnsupported, "value must be a list, set or tuple")
	}
	if len(items) == 0 {
		if f.Meta.Elem != saveable.KindEmpty {
			return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrInconsistent, "empty collection declared as %v", f.Meta.Elem)
		}
		return n.insert(f.Meta, sql.NullString{})
	}
	if f.Meta.Elem == saveable.KindEmpty {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrInconsistent, "declared as empty, but it is not")
	}
	for _, item := range items {
		if _, ok := saveable.KindOfScalar(item); !ok {
			return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrUnsupported, "element type %T is not supported", item)
		}
		if err := n.insert(f.Meta, sql.NullString{String: saveable.FormatScalar(item), Valid: true}); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) WriteNone(f saveable.DataField) error {
	if f.Value != nil {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrInconsistent, "expected to be none but is %v", f.Value)
	}
	meta, err := saveable.NewMetaData(saveable.KindNone, f.Meta.Role, f.Meta.Name, saveable.KindNone)
	if err != nil {
		return err
	}
	return n.insert(meta, sql.NullString{String: saveable.NoneLiteral, Valid: true})
}

// Entries yields one entry per data row, so a collection shows up once per
// element; the read state makes sure it is materialized once.
func (n *Node) Entries() ([]saveable.Entry, error) {
	var rows []dataRow
	if err := n.s.tx.Select(&rows, selectAttributesSQL(n.name), n.objectID); err != nil {
		return nil, saveable.FieldErrf(n.name, "", err, "selecting attributes")
	}
	entries := make([]saveable.Entry, 0, len(rows))
	for _, row := range rows {
		meta, err := n.s.meta(row.MetaData)
		if err != nil {
			return nil, saveable.FieldErrf(n.name, "", err, "row %d", row.ID)
		}
		entries = append(entries, &entry{row: row, meta: meta})
	}
	return entries, nil
}

func (n *Node) entry(e saveable.Entry) (*entry, error) {
	ent, ok := e.(*entry)
	if !ok {
		return nil, saveable.FieldErrf(n.name, "", saveable.ErrUnsupported, "foreign entry %T", e)
	}
	return ent, nil
}

func (n *Node) ReadPrimitive(e saveable.Entry) (saveable.DataField, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, err
	}
	if !ent.row.Data.Valid {
		return saveable.DataField{}, saveable.FieldErrf(n.name, ent.meta.Name, saveable.ErrInconsistent, "%v value without data", ent.meta.Type)
	}
	v, err := saveable.ParseScalar(ent.meta.Type, ent.row.Data.String)
	if err != nil {
		return saveable.DataField{}, saveable.FieldErrf(n.name, ent.meta.Name, err, "")
	}
	return saveable.DataField{Meta: ent.meta, Value: v}, nil
}

// elements collects the values of every row sharing ent's metadata.
func (n *Node) elements(ent *entry) ([]any, error) {
	var data []sql.NullString
	if err := n.s.tx.Select(&data, selectElementsSQL(n.name), n.objectID, ent.row.MetaData); err != nil {
		return nil, saveable.FieldErrf(n.name, ent.meta.Name, err, "selecting elements")
	}
	if ent.meta.Elem == saveable.KindEmpty {
		if len(data) != 1 || data[0].Valid {
			return nil, saveable.FieldErrf(n.name, ent.meta.Name, saveable.ErrInconsistent, "declared empty but has %d rows with data", len(data))
		}
		return []any{}, nil
	}
	if lo.ContainsBy(data, func(d sql.NullString) bool { return !d.Valid }) {
		return nil, saveable.FieldErrf(n.name, ent.meta.Name, saveable.ErrInconsistent, "declared %v elements but has a row without data", ent.meta.Elem)
	}
	items, err := saveable.ParseScalars(ent.meta.Elem, lo.Map(data, func(d sql.NullString, _ int) string { return d.String }))
	if err != nil {
		return nil, saveable.FieldErrf(n.name, ent.meta.Name, err, "")
	}
	return items, nil
}

func (n *Node) ReadIterable(e saveable.Entry) (saveable.DataField, bool, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	if n.Materialized(ent.meta.Name) {
		return saveable.DataField{}, false, nil
	}
	items, err := n.elements(ent)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	n.MarkMaterialized(ent.meta.Name)
	return saveable.DataField{Meta: ent.meta, Value: items}, true, nil
}

func (n *Node) ReadDictionary(e saveable.Entry) (saveable.DataField, bool, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	if n.HasDictPart(ent.meta.Name, ent.meta.Role) {
		return saveable.DataField{}, false, nil
	}
	items, err := n.elements(ent)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	f, ok, err := n.AddDictPart(ent.meta, items)
	if err != nil {
		return saveable.DataField{}, false, saveable.FieldErrf(n.name, ent.meta.Name, err, "")
	}
	return f, ok, nil
}

func (n *Node) Children() ([]saveable.Node, error) {
	var rows []dataRow
	if err := n.s.tx.Select(&rows, selectChildrenSQL(n.name), n.objectID); err != nil {
		return nil, saveable.FieldErrf(n.name, "", err, "selecting children")
	}
	children := make([]saveable.Node, 0, len(rows))
	for _, row := range rows {
		if !row.ReferenceID.Valid {
			return nil, saveable.FieldErrf(n.name, row.Reference.String, saveable.ErrInconsistent, "reference without object id")
		}
		if ok, err := n.s.tableExists(row.Reference.String); err != nil {
			return nil, err
		} else if !ok {
			return nil, saveable.FieldErrf(n.name, row.Reference.String, saveable.ErrMissingMeta, "table does not exist")
		}
		children = append(children, newNode(n.s, row.Reference.String, n, row.ReferenceID.String))
	}
	return children, nil
}

func (s *Storage) metaID(meta saveable.MetaData) (int64, error) {
	if id, ok := s.metaIDs[meta]; ok {
		return id, nil
	}
	tags := meta.Tags()
	var id int64
	err := s.tx.Get(&id, selectMetaIDSQL(), tags[0], tags[1], tags[2], tags[3])
	if errors.Is(err, sql.ErrNoRows) {
		row := metaRow{Type: tags[0], Role: tags[1], Name: tags[2], Elem: tags[3]}
		res, err := s.tx.NamedExec(insertMetaSQL(), &row)
		if err != nil {
			return 0, errors.Wrap(err, "insert metadata")
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, errors.Wrap(err, "select metadata")
	}
	s.metaIDs[meta] = id
	s.metas[id] = meta
	return id, nil
}

func (s *Storage) meta(id int64) (saveable.MetaData, error) {
	if meta, ok := s.metas[id]; ok {
		return meta, nil
	}
	var row metaRow
	err := s.tx.Get(&row, selectMetaSQL(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return saveable.MetaData{}, errors.Wrapf(saveable.ErrMissingMeta, "no metadata entry found for id %d", id)
	} else if err != nil {
		return saveable.MetaData{}, errors.Wrapf(err, "select metadata %d", id)
	}
	meta, err := saveable.ParseMetaData(row.Type, row.Role, row.Name, row.Elem)
	if err != nil {
		return saveable.MetaData{}, err
	}
	s.metas[id] = meta
	s.metaIDs[meta] = id
	return meta, nil
}

func (s *Storage) tableExists(name string) (bool, error) {
	if s.tables[tableKey(name)] {
		return true, nil
	}
	var count int
	if err := s.tx.Get(&count, tableExistsSQL, name); err != nil {
		return false, errors.Wrapf(err, "checking table %q", name)
	}
	if count > 0 {
		s.tables[tableKey(name)] = true
	}
	return count > 0, nil
}

// ensureTable creates the object table for name unless it already exists.
func (s *Storage) ensureTable(name string) error {
	ok, err := s.tableExists(name)
	if err != nil || ok {
		return err
	}
	if _, err := s.tx.Exec(createObjectTableSQL(name)); err != nil {
		return errors.Wrapf(err, "create table %q", name)
	}
	s.tables[tableKey(name)] = true
	s.logger.Debug("sqlfmt: created table", zap.String("table", name))
	return nil
}
