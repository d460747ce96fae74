package tf

import "strconv"

// The builders below produce the argument lists for each supported operation.
// They are kept separate from Client so the exact command lines can be tested.

func StatusInvocation(root string) Invocation {
	return Invocation{
		Command: CommandStatus,
		Args:    []string{root, "/format:brief"},
		Options: Options{Recursive: true},
	}
}

func HistoryInvocation(path string, count int) Invocation {
	return Invocation{
		Command: CommandHistory,
		Args:    []string{path, "/format:detailed", "/stopafter:" + strconv.Itoa(count)},
		Options: Options{Recursive: true},
	}
}

// PreviousVersionInvocation anchors the history at changesetID and caps it at two
// entries: the changeset itself and its predecessor.
func PreviousVersionInvocation(path string, changesetID int) Invocation {
	return Invocation{
		Command: CommandHistory,
		Args:    []string{path, "/format:detailed", "/v:" + strconv.Itoa(changesetID), "/stopafter:2"},
	}
}

// ViewInvocation prints the content of path; an empty version means latest.
func ViewInvocation(path, version string) Invocation {
	args := []string{path}
	if version != "" {
		args = append(args, "/version:"+version)
	}
	return Invocation{Command: CommandView, Args: args}
}

func CheckoutInvocation(path string, recursive bool) Invocation {
	return Invocation{Command: CommandCheckout, Args: []string{path}, Options: Options{Recursive: recursive}}
}

func GetInvocation(path string) Invocation {
	return Invocation{Command: CommandGet, Args: []string{path}, Options: Options{Recursive: true}}
}

func UndoInvocation(path string) Invocation {
	return Invocation{Command: CommandUndo, Args: []string{path}, Options: Options{Recursive: true}}
}
