// Package all registers every built-in schema provider. Import it for side
// effects:
//
//	import _ "datasync/internal/schema/all"
package all

import (
	_ "datasync/internal/schema/file"
	_ "datasync/internal/schema/postgres"
	_ "datasync/internal/schema/remote"
	_ "datasync/internal/schema/sqldb"
)
