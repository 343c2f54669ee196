// Package contracts embeds the default Bean token interface description.
package contracts

import _ "embed"

//go:embed bean.abi.json
var BeanABI string
