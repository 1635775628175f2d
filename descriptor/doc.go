// Package descriptor loads and manages the declarative agent descriptors the
// factory manufactures agents from.
//
// A descriptor file is JSON or YAML with a top level "agents" list:
//
//	agents:
//	  - name: JournalAgent
//	    task_keyword: journal          # or a list: [journal, diary]
//	    role: Journal Writing
//	    personality: Expert in documentation.
//	    task_function: journal_task_function
//	    priority: 2                    # unknown keys are kept as attributes
//
// Every entry must carry all five required keys. A single malformed entry
// fails the whole load.
package descriptor
