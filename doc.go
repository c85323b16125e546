/*
Package saveable persists plain Go structs into a storage file and loads them
back into fresh values of the same type.

A saveable object is any struct whose exported fields are:

1. Primitives: bool, integers, floats, strings.

2. Uniform collections of primitives: slices (lists), arrays (tuples) and
map[T]struct{} (sets).

3. Simple dictionaries: map[K]V with primitive keys and values.

4. Nested saveable objects: struct fields or non-nil pointers to structs.

5. None: nil pointers to any of the non-struct shapes above, or nil `any`.

A `save:"name"` tag renames a field; `save:"-"` skips it.

# Technical Details

**Metadata.**
Every stored unit carries a MetaData record: declared type, role, name and
element type. Reads rebuild values from the metadata alone, which keeps
bool apart from int, a list apart from a tuple, and an empty list apart from
none.

**Nodes.**
Each object maps to one Node of the chosen backend, and nested objects map to
child nodes addressable by field name. The engine (WriteData, ReadAttributes,
Load) decides what to store; a backend only implements the Node primitives.

**Dictionaries.**
A dictionary is stored as two lists under the dictionary's name: its keys
(role dict_keys) and its values (role dict_values), both in key order. Reads
collect the two halves independently and zip them once both have arrived; a
node that ends a read pass with only one half reports ErrIncompleteDict.

**Backends.**
Sub-packages boltfmt (hierarchical binary container on Bolt), sqlfmt
(relational tables in SQLite) and xmlfmt (an XML tree) implement Storage.
Package formats picks one from a file name.
*/
package saveable
