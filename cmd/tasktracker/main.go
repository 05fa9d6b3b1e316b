/*
 * @author: sun977
 * @date: 2025.12.16
 * @description: 主程序入口
 */

package main

func main() {
	Execute()
}
