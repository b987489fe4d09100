// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sparql

import "strings"

// ValuesClause renders an explicit IRI enumeration for a VALUES block,
// e.g. "<http://a> <http://b>". Restricting queries to an enumerated
// entity set keeps property checks scoped to one catalog's entities
// instead of wildcarding the whole store.
func ValuesClause(iris []string) string {
	var b strings.Builder
	for i, iri := range iris {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('<')
		b.WriteString(iri)
		b.WriteByte('>')
	}
	return b.String()
}
