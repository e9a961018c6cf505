// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// move2polka compiles a verified Move model to a PolkaVM program blob.
//
// The Move front-end (parser, type checker, bytecode generator) is a
// separate tool; move2polka consumes its serialized model output.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/linker"
	"github.com/movechain/go-move/movelang"
	"github.com/movechain/go-move/movelang/model"
)

const (
	// envLogLevel configures the log level (trace..error).
	envLogLevel = "MOVE_LOG"
	// envStdlibPath points at the Move standard library source tree, used
	// by the front-end when compiling a bare Move file without a package
	// manifest. Carried through to the front-end invocation.
	envStdlibPath = "MOVE_STDLIB_PATH"
)

var (
	outputFlag = cli.StringFlag{
		Name:  "output, o",
		Usage: "output program blob path",
		Value: "output/output.polkavm",
	}
	addressFlag = cli.StringSliceFlag{
		Name:  "address",
		Usage: "named address mapping name=0x... (repeatable)",
	}
	dependencyFlag = cli.StringSliceFlag{
		Name:  "dependency",
		Usage: "dependency model path (repeatable)",
	}
	signerFlag = cli.StringSliceFlag{
		Name:  "signer",
		Usage: "script signer address (repeatable, positional)",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML config with named address mappings",
	}
	emitIRFlag = cli.BoolFlag{
		Name:  "emit-ir",
		Usage: "leave textual IR next to each object",
	}
	optFlag = cli.StringFlag{
		Name:  "opt",
		Usage: "code generator optimization knob (0 or s)",
		Value: "0",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "move2polka"
	app.Usage = "compile a Move model to a PolkaVM program blob"
	app.ArgsUsage = "<model.json>"
	app.Flags = []cli.Flag{
		outputFlag, addressFlag, dependencyFlag, signerFlag,
		configFlag, emitIRFlag, optFlag,
	}
	app.Before = func(*cli.Context) error {
		initLogger()
		return nil
	}
	app.Action = compile

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func initLogger() {
	log.SetLevel(log.InfoLevel)
	if lvl := os.Getenv(envLogLevel); lvl != "" {
		parsed, err := log.ParseLevel(lvl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ignoring invalid %s=%q\n", envLogLevel, lvl)
		} else {
			log.SetLevel(parsed)
		}
	}
}

func compile(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return cli.NewExitError("usage: move2polka [flags] <model.json>", 1)
	}
	source := ctx.Args().First()

	opts := &movelang.Options{
		Output:         ctx.String("output"),
		Sources:        []string{source},
		Dependencies:   ctx.StringSlice("dependency"),
		NamedAddresses: make(map[string]common.Address),
		EmitIR:         ctx.Bool("emit-ir"),
	}
	if ctx.IsSet("opt") {
		opts.OptLevel = ctx.String("opt")
	}
	if cfgPath := ctx.String("config"); cfgPath != "" {
		if err := loadConfig(cfgPath, opts); err != nil {
			return err
		}
	}
	for _, mapping := range ctx.StringSlice("address") {
		name, addr, err := parseAddressMapping(mapping)
		if err != nil {
			return err
		}
		opts.NamedAddresses[name] = addr
	}
	for _, s := range ctx.StringSlice("signer") {
		opts.Signers = append(opts.Signers, common.HexToAddress(s))
	}
	if stdlib := os.Getenv(envStdlibPath); stdlib != "" {
		opts.Dependencies = append(opts.Dependencies, stdlib)
	}

	g, err := model.LoadJSON(source)
	if err != nil {
		return err
	}
	for _, dep := range opts.Dependencies {
		depModel, err := model.LoadJSON(dep)
		if err != nil {
			return err
		}
		g.Modules = append(g.Modules, depModel.Modules...)
	}

	arts, err := movelang.Translate(g, opts)
	if err != nil {
		return err
	}

	outDir := filepath.Dir(opts.Output)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	objects, nativeObj, err := movelang.EmitObjects(arts, outDir, opts)
	if err != nil {
		return err
	}
	if err := linker.LinkProgram(objects, nativeObj, opts.Output); err != nil {
		return err
	}

	blob, err := os.ReadFile(opts.Output)
	if err != nil {
		return err
	}
	if verrs := linker.VerifyBlob(blob); len(verrs) > 0 {
		for _, verr := range verrs {
			log.Error(verr.Error())
		}
		return fmt.Errorf("blob verification failed with %d errors", len(verrs))
	}

	log.WithFields(log.Fields{"blob": opts.Output, "size": len(blob)}).
		Info("program blob ready")
	return nil
}

func parseAddressMapping(mapping string) (string, common.Address, error) {
	for i := 0; i < len(mapping); i++ {
		if mapping[i] == '=' {
			return mapping[:i], common.HexToAddress(mapping[i+1:]), nil
		}
	}
	return "", common.Address{}, fmt.Errorf("invalid address mapping %q (want name=0x...)", mapping)
}

func fatal(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
