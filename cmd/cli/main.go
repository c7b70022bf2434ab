package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"addongate/cmd/cli/command"
)

// 打印欢迎信息和启动logo
func printWelcomeMessage() {
	PrintStartupLogo()
	fmt.Println("Welcome to the AddOnGate CLI REPL! Type 'exit' to quit.")
	fmt.Println("Type 'help' to see the list of available commands.")
}

// 打印帮助信息
func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  types                          List registered add-on types.")
	fmt.Println("  formats [name]                 Dump bit layouts as yaml.")
	fmt.Println("  decode <whoAmI> <hex> [flags]  Decode a status payload (--revision, --name, --family, --status, --cal).")
	fmt.Println("  encode <format> k=v...         Encode field values into a hex payload.")
	fmt.Println("  calcmd <name> [hexRd]          Build colour sensor calibration commands.")
	fmt.Println("  help                           Show this help message.")
	fmt.Println("  exit                           Exit the REPL.")
}

func PrintStartupLogo() {
	logo := `
	    _       _     _             ____       _
	   / \   __| | __| | ___  _ __ / ___| __ _| |_ ___
	  / _ \ / _' |/ _' |/ _ \| '_ \ |  _ / _' | __/ _ \
	 / ___ \ (_| | (_| | (_) | | | | |_| | (_| | ||  __/
	/_/   \_\__,_|\__,_|\___/|_| |_|\____|\__,_|\__\___|

`
	fmt.Print(logo)
}

func main() {
	// 带参数时作为普通命令行执行一次
	if len(os.Args) > 1 {
		if err := command.NewRootCommand().Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// 创建输入读取器
	scanner := bufio.NewScanner(os.Stdin)

	// 打印欢迎信息
	printWelcomeMessage()

	// 进入 REPL 循环
	for {
		// 打印提示符
		fmt.Print("> ")

		// 读取用户输入
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		// 如果输入是 exit，退出
		if strings.ToLower(input) == "exit" {
			fmt.Println("Exiting AddOnGate CLI...")
			break
		}

		// 如果输入 help，打印帮助信息
		if strings.ToLower(input) == "help" {
			printHelp()
			continue
		}

		// 将用户输入拆分为命令和参数
		args := strings.Fields(input)
		if len(args) == 0 {
			continue
		}

		// 仅当子命令有效时，才设置参数并执行
		switch args[0] {
		case "types", "formats", "decode", "encode", "calcmd":
			// 每次新建根命令，避免上一次的 flag 残留
			rootCmd := command.NewRootCommand()
			rootCmd.SetArgs(args)
			if err := rootCmd.Execute(); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		default:
			fmt.Printf("Unknown command: %s\n", args[0])
			fmt.Println("Type 'help' to see the list of available commands.")
		}
	}

	// 如果程序执行到这里，说明 REPL 结束
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}
