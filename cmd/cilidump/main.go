package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/PurpleSec/logx"

	"clrmeta/pkg/cli"
	"clrmeta/pkg/token"
)

func help() {
	fmt.Println("Dumps the CLI/.NET metadata of a managed PE image.")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("   ", filepath.Base(os.Args[0]), "[-v|-vv] assembly")
	fmt.Println("Example:")
	fmt.Println("   ", filepath.Base(os.Args[0]), "MyApp.exe")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("   ", "-v", "\t", "verbose (info-level) logging")
	fmt.Println("   ", "-vv", "\t", "very verbose (debug-level) logging")
	fmt.Println("   ", "-help", "\t", "display help information")
}

func main() {
	nArgs := len(os.Args)
	if nArgs < 2 {
		log.Println("assembly path not supplied")
		help()
		os.Exit(1)
	}

	level := logx.Warning
	path := ""
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-help", "--help":
			help()
			os.Exit(0)
		case "-v":
			level = logx.Info
		case "-vv":
			level = logx.Debug
		default:
			path = arg
		}
	}
	if path == "" {
		log.Println("assembly path not supplied")
		help()
		os.Exit(1)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatal("assembly file does not exist")
	}

	lg := logx.Console(level)

	asm, err := cli.LoadFile(path, cli.WithLogger(lg))
	if err != nil {
		log.Fatal(err)
	}
	defer asm.Close()

	fmt.Println("Path:", asm.Path)
	fmt.Printf("CLI Header: runtime %d.%d, flags 0x%08X, entry point token 0x%08X\n",
		asm.Header.MajorRuntimeVersion, asm.Header.MinorRuntimeVersion, asm.Header.Flags, asm.Header.EntryPointToken)

	fmt.Printf("Metadata Root: version %q\n", asm.Root.VersionString)
	fmt.Println("Streams:")
	for _, s := range asm.Root.Streams {
		fmt.Printf("    %-10s offset=0x%X size=%d\n", s.Name, s.Offset, s.Size)
	}

	name, err := asm.Name()
	if err != nil {
		log.Println("warning: could not resolve assembly name:", err)
	} else if name != "" {
		fmt.Println("Assembly Name:", name)
	}

	if mod, err := asm.ModuleRow(); err == nil && mod != nil {
		modName, _ := asm.Heaps.Strings.Get(mod.NameIdx)
		mvid, _ := asm.Heaps.Guids.Get(mod.MvidIdx)
		fmt.Println("Module Name:", modName)
		fmt.Println("Module Mvid:", mvid.String())
	}

	fmt.Println("Tables:")
	for t := token.Module; t <= token.GenericParamConstraint; t++ {
		if n := asm.Tables.RowCount(t); n > 0 {
			fmt.Printf("    %-24s %d rows\n", t.String(), n)
		}
	}

	if debugDirs, err := asm.DebugDirectories(); err == nil {
		for _, d := range debugDirs {
			if d.PdbPath != "" {
				fmt.Printf("Debug: %s age=%d guid=%s\n", d.PdbPath, d.PdbAge, d.PdbGUID.String())
			}
		}
	}
}
