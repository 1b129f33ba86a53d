package ast

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// toJSON converts one expression node into a JSON-friendly map/slice/
// scalar representation via a type switch over the closed Expr set.
func toJSON(e Expr) any {
	switch n := e.(type) {
	case Empty:
		return map[string]any{"type": "Empty"}
	case Unary:
		return map[string]any{"type": "Unary", "op": n.Op.Lexeme, "child": toJSON(n.Child)}
	case Binary:
		return map[string]any{"type": "Binary", "op": n.Op.Lexeme, "left": toJSON(n.Left), "right": toJSON(n.Right)}
	case Grouping:
		return map[string]any{"type": "Grouping", "child": toJSON(n.Child)}
	case CurlyGrouping:
		return map[string]any{"type": "CurlyGrouping", "child": toJSON(n.Child)}
	case SquareGrouping:
		return map[string]any{"type": "SquareGrouping", "child": toJSON(n.Child)}
	case Literal:
		return map[string]any{"type": "Literal", "value": n.Tok.Literal, "lexeme": n.Tok.Lexeme}
	case Variable:
		return map[string]any{"type": "Variable", "name": n.Name.Lexeme}
	case CommaSeparatedList:
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, toJSON(item))
		}
		return map[string]any{"type": "CommaSeparatedList", "items": items}
	case Subexprs:
		stmts := make([]any, 0, len(n.Statements))
		for _, s := range n.Statements {
			stmts = append(stmts, toJSON(s))
		}
		return map[string]any{"type": "Subexprs", "statements": stmts}
	case VariableDeclaration:
		return map[string]any{"type": "VariableDeclaration", "assignment": toJSON(n.Assignment)}
	case FunctionDeclaration:
		params := make([]any, 0, len(n.Params))
		for _, p := range n.Params {
			params = append(params, toJSON(p))
		}
		return map[string]any{"type": "FunctionDeclaration", "name": n.Name.Name.Lexeme, "params": params, "body": toJSON(n.Body)}
	case FunctionCall:
		args := make([]any, 0, len(n.Args))
		for _, a := range n.Args {
			args = append(args, toJSON(a))
		}
		return map[string]any{"type": "FunctionCall", "name": n.Name.Name.Lexeme, "args": args}
	case ForLoop:
		return map[string]any{"type": "ForLoop", "init": toJSON(n.Init), "cond": toJSON(n.Cond), "post": toJSON(n.Post), "body": toJSON(n.Body)}
	case WhileLoop:
		return map[string]any{"type": "WhileLoop", "cond": toJSON(n.Cond), "body": toJSON(n.Body)}
	case PrintStatement:
		return map[string]any{"type": "PrintStatement", "arg": toJSON(n.Arg)}
	case ReturnStatement:
		var v any
		if n.Value != nil {
			v = toJSON(n.Value)
		}
		return map[string]any{"type": "ReturnStatement", "value": v}
	case IfStatement:
		return map[string]any{"type": "IfStatement", "cond": toJSON(n.Cond), "body": toJSON(n.Body)}
	default:
		return map[string]any{"type": fmt.Sprintf("%T", e)}
	}
}

// DumpJSON renders a slice of top-level expressions to prettified JSON,
// printing it with the same yellow-banner convention the original AST
// dumper used.
func DumpJSON(exprs []Expr) (string, error) {
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, toJSON(e))
	}
	bytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	jsonStr := string(bytes)
	fmt.Println(colorYellow + "----- AST JSON -----")
	fmt.Println(colorYellow + jsonStr)
	fmt.Println(colorYellow + "-----" + colorReset)
	return jsonStr, nil
}

// WriteJSONToFile writes the AST's JSON dump to the given file path.
func WriteJSONToFile(exprs []Expr, path string) error {
	s, err := DumpJSON(exprs)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating AST dump file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		return fmt.Errorf("error writing AST dump: %w", err)
	}
	return nil
}
